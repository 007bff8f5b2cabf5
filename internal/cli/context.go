// Package cli provides the command-line interface for harvest.
package cli

import (
	"sync"

	"github.com/spf13/cobra"

	"github.com/law-makers/harvest/internal/app"
)

// apps maps a command to the application created for it in
// PersistentPreRunE. Lookups walk up to the root.
var (
	appMu sync.Mutex
	apps  = map[*cobra.Command]*app.Application{}
)

// SetApp associates a with cmd. A nil a removes the association.
func SetApp(cmd *cobra.Command, a *app.Application) {
	if cmd == nil {
		return
	}
	appMu.Lock()
	defer appMu.Unlock()
	if a == nil {
		delete(apps, cmd)
		return
	}
	apps[cmd] = a
}

// GetAppFromCmd returns the application for cmd or its nearest ancestor
func GetAppFromCmd(cmd *cobra.Command) *app.Application {
	appMu.Lock()
	defer appMu.Unlock()
	for c := cmd; c != nil; c = c.Parent() {
		if a, ok := apps[c]; ok {
			return a
		}
	}
	return nil
}
