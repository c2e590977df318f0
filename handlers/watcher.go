package handlers

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"mediavault/vault"
)

// StartWatcher sets up filesystem watches on every category root so that
// files added or removed outside the upload path (scp, a file manager, …)
// invalidate the affected listing without waiting for the safety TTL.
//
// Category roots are flat — uploads never create subdirectories — so no
// recursive watching is needed. It returns immediately; event processing
// runs in a background goroutine. The returned stop function closes the
// watcher and terminates the goroutine.
func StartWatcher(policy *vault.Policy, listings *Listings) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Map each watched root back to its category for event dispatch.
	byRoot := make(map[string]vault.Category, 4)
	for _, c := range vault.Categories() {
		root := filepath.Clean(policy.RootDir(c))
		byRoot[root] = c
		if err := w.Add(root); err != nil {
			log.Printf("watcher: could not watch %s: %v", root, err)
		}
	}

	go func() {
		defer w.Close()
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				dir := filepath.Clean(filepath.Dir(event.Name))
				if c, ok := byRoot[dir]; ok {
					listings.Invalidate(c)
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("watcher: %v", err)
			}
		}
	}()

	return func() { _ = w.Close() }, nil
}
