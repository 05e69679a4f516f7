package cmd

import (
	"fmt"
	"os"
)

// Compact compacts the key store database to reclaim unused space
func (a *App) Compact() {
	s, err := a.openBolt()
	if err != nil {
		HandleError(err)
	}
	defer s.Close()

	info, err := os.Stat(s.Path())
	if err != nil {
		HandleError(err)
	}
	sizeBefore := info.Size()

	if err := s.Compact(); err != nil {
		HandleError(err)
	}

	info, err = os.Stat(s.Path())
	if err != nil {
		HandleError(err)
	}
	sizeAfter := info.Size()

	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
}
