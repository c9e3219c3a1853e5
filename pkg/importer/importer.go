// Package importer loads target usernames from delimited text files into
// the account store.
package importer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"iggrowth/pkg/account"
	"iggrowth/pkg/errors"
	"iggrowth/pkg/logger"
	"iggrowth/pkg/store"
)

// Summary reports what an import run did.
type Summary struct {
	Added    int
	Existing int
	Skipped  int
}

// Importer enrolls usernames read from files into the store.
type Importer struct {
	store  *store.Store
	logger logger.Logger
}

// New creates an importer over the given store.
func New(st *store.Store) *Importer {
	return &Importer{store: st, logger: logger.GetLogger()}
}

// ImportFile reads a username list from path. One username per line; blank
// lines and lines starting with # are skipped; a leading @ is stripped; a
// line may carry an explicit profile link as "username,link".
func (i *Importer) ImportFile(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, errors.Wrap(errors.ErrorTypeStoreUnavailable,
			fmt.Sprintf("open import file %s", path), err)
	}
	defer f.Close()

	sum, err := i.ImportReader(f)
	if err != nil {
		return sum, err
	}

	i.logger.InfoWithFields("import finished", map[string]interface{}{
		"file":     path,
		"added":    sum.Added,
		"existing": sum.Existing,
		"skipped":  sum.Skipped,
	})
	return sum, nil
}

// ImportReader enrolls every username read from r.
func (i *Importer) ImportReader(r io.Reader) (Summary, error) {
	var sum Summary

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		username, link, ok := parseLine(scanner.Text())
		if !ok {
			sum.Skipped++
			continue
		}
		if link == "" {
			link = account.ProfileLinkFor(username)
		}

		res, err := i.store.Add(username, link)
		if err != nil {
			return sum, fmt.Errorf("line %d: %w", lineNo, err)
		}
		switch res {
		case store.AddCreated:
			sum.Added++
		case store.AddAlreadyExists:
			sum.Existing++
		}
	}
	if err := scanner.Err(); err != nil {
		return sum, fmt.Errorf("read import data: %w", err)
	}
	return sum, nil
}

// parseLine extracts a username and optional profile link from one line.
// ok is false for blanks and comments.
func parseLine(line string) (username, link string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}

	if comma := strings.Index(line, ","); comma >= 0 {
		link = strings.TrimSpace(line[comma+1:])
		line = strings.TrimSpace(line[:comma])
	}

	username = strings.TrimPrefix(line, "@")
	if username == "" {
		return "", "", false
	}
	return username, link, true
}
