package plugin

import "time"

// demoPhase builds a PhaseSpec that runs a literal shell snippet emitting a
// PROGRESS sentinel line, standing in for the real check/download/execute
// step of a package manager. command is passed to "sh -c".
func demoPhase(command string, timeout time.Duration) PhaseSpec {
	return PhaseSpec{
		Command: []string{"sh", "-c", command},
		Timeout: timeout,
	}
}

// RegisterBuiltins adds the demo plugin set used by the CLI's default
// selection and by the plugin and cmd/pmrun tests; the orchestrator's
// scenario tests build their own descriptors.
func RegisterBuiltins(r *Registry) {
	r.Register(PluginDescriptor{
		Name: "apt",
		Check: demoPhase(
			`echo 'PROGRESS:{"phase":"check","message":"Reading package lists..."}'; sleep 0.1`, 0),
		Download: demoPhase(
			`echo 'PROGRESS:{"phase":"download","message":"Fetching archives..."}'; sleep 0.2`, 0),
		Execute: PhaseSpec{
			Command:    []string{"sh", "-c", `echo 'PROGRESS:{"phase":"execute","message":"Unpacking..."}'; sleep 0.2; echo done`},
			MutexNames: []string{"pkgmgr:apt", "pkgmgr:dpkg"},
		},
		StallAfter: 30 * time.Second,
		MaxRetries: 3,
		SupportsSeparateDownload: true,
	})

	r.Register(PluginDescriptor{
		Name:      "snap",
		DependsOn: []string{"apt"},
		Check: demoPhase(
			`echo 'PROGRESS:{"phase":"check","message":"Looking for refreshes..."}'; sleep 0.1`, 0),
		Download: demoPhase(
			`echo 'PROGRESS:{"phase":"download","message":"Downloading snap..."}'; sleep 0.2`, 0),
		Execute: PhaseSpec{
			Command:    []string{"sh", "-c", `echo 'PROGRESS:{"phase":"execute","message":"Refreshing..."}'; sleep 0.1; echo done`},
			MutexNames: []string{"pkgmgr:snap"},
		},
		StallAfter: 30 * time.Second,
		MaxRetries: 3,
		SupportsSeparateDownload: true,
	})

	// conda-self and conda-packages share a mutex name, exercising the
	// mutex registry's mutual exclusion: the two jobs never run their
	// Execute phase concurrently.
	r.Register(PluginDescriptor{
		Name: "conda-self",
		Check: demoPhase(
			`echo 'PROGRESS:{"phase":"check","message":"Checking conda version..."}'; sleep 0.1`, 0),
		Download: demoPhase(
			`echo 'PROGRESS:{"phase":"download","message":"Fetching conda update..."}'; sleep 0.1`, 0),
		Execute: PhaseSpec{
			Command:    []string{"sh", "-c", `echo 'PROGRESS:{"phase":"execute","message":"Updating conda..."}'; sleep 0.2; echo done`},
			MutexNames: []string{"conda"},
		},
		StallAfter: 30 * time.Second,
		MaxRetries: 3,
		SupportsSeparateDownload: true,
	})

	r.Register(PluginDescriptor{
		Name: "conda-packages",
		Check: demoPhase(
			`echo 'PROGRESS:{"phase":"check","message":"Checking package updates..."}'; sleep 0.1`, 0),
		Download: demoPhase(
			`echo 'PROGRESS:{"phase":"download","message":"Fetching packages..."}'; sleep 0.1`, 0),
		Execute: PhaseSpec{
			Command:    []string{"sh", "-c", `echo 'PROGRESS:{"phase":"execute","message":"Updating packages..."}'; sleep 0.2; echo done`},
			MutexNames: []string{"conda"},
		},
		StallAfter: 30 * time.Second,
		MaxRetries: 3,
		SupportsSeparateDownload: true,
	})

	r.Register(PluginDescriptor{
		Name: "sleep",
		Check: demoPhase(
			`echo 'PROGRESS:{"phase":"check","percent":50}'; sleep 0.1; echo 'PROGRESS:{"phase":"check","percent":100}'`, 0),
		Download: demoPhase(
			`echo 'PROGRESS:{"phase":"download","percent":50}'; sleep 0.1; echo 'PROGRESS:{"phase":"download","percent":100}'`, 0),
		Execute: demoPhase(
			`echo 'PROGRESS:{"phase":"execute","percent":50}'; sleep 0.1; echo 'PROGRESS:{"phase":"execute","percent":100}'; echo done`, 0),
		StallAfter: 5 * time.Second,
		MaxRetries: 3,
		SupportsSeparateDownload: true,
	})
}
