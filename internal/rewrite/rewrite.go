// Package rewrite performs in-place substitution of version strings in
// tracked files. Only the bytes matched by the pattern's "release" capture
// group are replaced; every other byte and the file mode are preserved.
package rewrite

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// ReplaceInFile rewrites the span of the "release" capture group with
// replacement on every line of the file where the pattern matches. It
// reports whether any byte changed. The file is replaced atomically via a
// temp file carrying the original permissions.
func ReplaceInFile(path string, re *regexp.Regexp, replacement string) (bool, error) {
	group := re.SubexpIndex("release")
	if group < 0 {
		return false, fmt.Errorf("pattern %q has no release group", re)
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	var out bytes.Buffer
	out.Grow(len(data))
	for _, line := range splitLines(data) {
		// Match against the line without its newline so $-anchored
		// patterns behave as expected.
		content := line
		var newline []byte
		if n := len(content); n > 0 && content[n-1] == '\n' {
			content, newline = content[:n-1], content[n-1:]
		}
		idx := re.FindSubmatchIndex(content)
		if idx == nil || idx[2*group] < 0 {
			out.Write(line)
			continue
		}
		out.Write(content[:idx[2*group]])
		out.WriteString(replacement)
		out.Write(content[idx[2*group+1]:])
		out.Write(newline)
	}

	if bytes.Equal(out.Bytes(), data) {
		return false, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return false, err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return false, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return false, err
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		os.Remove(tmpName)
		return false, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return false, err
	}
	return true, nil
}

// splitLines splits data after every newline, keeping the separators so the
// concatenation of the pieces is byte-identical to the input.
func splitLines(data []byte) [][]byte {
	var lines [][]byte
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			lines = append(lines, data)
			break
		}
		lines = append(lines, data[:i+1])
		data = data[i+1:]
	}
	return lines
}
