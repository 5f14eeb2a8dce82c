// Package meinfo reads and writes the client's me.info file: the registered
// name on the first line and the 32-character hex identity on the second.
package meinfo

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophkerb/internal/common"
	"github.com/dmitrijs2005/gophkerb/internal/filex"
	"github.com/dmitrijs2005/gophkerb/internal/identity"
)

var ErrInvalid = errors.New("invalid me.info")

type Info struct {
	Name string
	ID   identity.ID
}

// Load returns common.ErrorNotFound when the file does not exist.
func Load(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, fmt.Errorf("%s: %w", path, common.ErrorNotFound)
		}
		return Info{}, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() && len(lines) < 2 {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return Info{}, err
	}
	if len(lines) < 2 || lines[0] == "" {
		return Info{}, fmt.Errorf("%w: expected name and identity lines", ErrInvalid)
	}

	id, err := identity.Parse(lines[1])
	if err != nil || id.IsZero() {
		return Info{}, fmt.Errorf("%w: identity %q", ErrInvalid, lines[1])
	}
	return Info{Name: lines[0], ID: id}, nil
}

func Save(path string, info Info) error {
	if info.Name == "" || strings.ContainsAny(info.Name, "\r\n") || info.ID.IsZero() {
		return ErrInvalid
	}
	return filex.WriteAtomic(path, []byte(info.Name+"\n"+info.ID.String()+"\n"), 0o600)
}
