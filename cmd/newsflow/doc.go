// Package main hosts the newsflow CLI entrypoint and command graph.
//
// The Cobra-based command tree starts stage workers, runs single ticks for
// debugging, inspects and seeds the item store, scrapes the upstream feed,
// and scaffolds configuration. Every command resolves configuration through
// the shared commandContext so subcommands only deal with their own flags.
//
// Keep this package lean: new behaviour belongs in the internal packages
// first and is surfaced here through dedicated commands or flags.
package main
