// Package lifecycle manages the custom-https-server file server as an
// OS-supervised service on Linux (systemd) and macOS (launchd).
//
// The core entry point is the Orchestrator, which sequences the three
// lifecycle operations over a platform Supervisor:
//
//	cfg, err := resolver.Resolve(overrides)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	orch := lifecycle.NewOrchestrator(sup, layout, userCtx, logger)
//	err = orch.Install(ctx, cfg, scriptPath, true)
//
// Install renders the platform descriptor (unit file plus environment file
// on systemd, per-user agent plist on launchd), registers it with the host
// supervisor, enables autostart, and starts the service. Update stops the
// running instance, reclaims the listening port, patches the descriptor
// arguments in place, and restarts in the invoking user's session. Uninstall
// tears everything down with per-step typed outcomes so callers can see
// exactly what was removed.
//
// # Port Reclamation
//
// Supervisor stop commands can return before the old server process has
// released its listening socket. The Reclaimer polls port occupancy at a
// fixed interval up to a bound, then escalates once: it looks up the holder
// PIDs directly from the port and force-kills them, waits a short grace
// period, and takes one final verification poll. See Reclaimer for the
// exact protocol.
//
// # Design Philosophy
//
// This package prioritizes:
//
//   - One Supervisor interface, implemented per platform; the orchestrator
//     never branches on the OS name
//   - Explicit immutable configuration resolved once per invocation, never
//     ambient process environment
//   - Typed ordered argument lists serialized at write time, never raw text
//     patched by index
//   - Best-effort teardown with per-step outcomes instead of suppressed
//     errors
package lifecycle
