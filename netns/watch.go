package netns

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrCantReadProc is returned when /proc is currently unreadable.
var ErrCantReadProc = errors.New("can't read /proc")

// WatchProcessNamespaces polls /proc to discover network namespaces held
// open by running processes, as opposed to the named namespaces List
// reads from the bind-mount directory. Polling is the only option here;
// there is no inotify-style event for a process acquiring a namespace.
// Callers should expect the same inode to be reported repeatedly and
// dedupe as needed.
func WatchProcessNamespaces(ctx context.Context, procfs string, nsChan chan<- string) error {
	keepGoing := true
	go func() {
		<-ctx.Done()
		keepGoing = false
	}()
	defer close(nsChan)

	for keepGoing {
		if err := listProcessNamespaces(procfs, nsChan); err != nil {
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func listProcessNamespaces(procfs string, nsChan chan<- string) error {
	d, err := os.Open(procfs)
	if err != nil {
		return ErrCantReadProc
	}
	defer d.Close()

	subdirs, err := d.Readdirnames(0)
	if err != nil {
		return ErrCantReadProc
	}

	for _, subdir := range subdirs {
		if _, err := strconv.Atoi(subdir); err != nil {
			continue
		}
		// subdir is a PID; check whether it holds a net namespace.
		nsLink, err := os.Readlink(procfs + "/" + subdir + "/ns/net")
		if err != nil {
			continue
		}
		chunks := strings.Split(nsLink, ":")
		if len(chunks) < 2 {
			log.Println("ill-formatted net namespace link:", nsLink)
			continue
		}
		inode := chunks[len(chunks)-1]
		if len(inode) <= 2 {
			log.Println("net namespace link missing inode:", nsLink)
			continue
		}
		inode = inode[1 : len(inode)-1]
		if _, err := strconv.ParseUint(inode, 10, 64); err != nil {
			log.Println("net namespace inode is not numeric:", nsLink)
			continue
		}
		nsChan <- inode
	}
	return nil
}
