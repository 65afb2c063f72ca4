package agents

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadOffices reads a handoff file. A JSON null yields no offices.
func ReadOffices(path string) ([]Office, error) {
	var offices []Office
	if err := readJSON(path, &offices); err != nil {
		return nil, err
	}
	return offices, nil
}

// WriteOffices writes offices as an indented JSON array.
func WriteOffices(path string, offices []Office) error {
	if offices == nil {
		offices = []Office{}
	}
	return writeJSON(path, offices)
}

// ReadContacts reads a stage 2 output file.
func ReadContacts(path string) ([]ContactResult, error) {
	var contacts []ContactResult
	if err := readJSON(path, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// WriteContacts writes stage 2 results as an indented JSON array.
func WriteContacts(path string, contacts []ContactResult) error {
	if contacts == nil {
		contacts = []ContactResult{}
	}
	return writeJSON(path, contacts)
}

// CountAgents returns the number of agents across all offices.
func CountAgents(offices []Office) int {
	n := 0
	for _, o := range offices {
		n += len(o.Agents)
	}
	return n
}

// Flatten returns every agent of every office in file order.
func Flatten(offices []Office) []Agent {
	all := make([]Agent, 0, CountAgents(offices))
	for _, o := range offices {
		all = append(all, o.Agents...)
	}
	return all
}

// CopyFile copies src to dst, replacing dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	return atomicWrite(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// ExampleOffices is the template written by WriteExample.
func ExampleOffices() []Office {
	return []Office{{
		Name:    "Example Real Estate",
		Address: "123 Main St, City, State 12345",
		Agents: []Agent{{
			Name:          "John Doe",
			ZillowProfile: "https://www.zillow.com/profile/johndoe",
			Extra:         map[string]json.RawMessage{"title": json.RawMessage(`"Real Estate Agent"`)},
		}},
	}}
}

// WriteExample writes an example handoff file for the user to edit. It
// refuses to overwrite an existing file.
func WriteExample(path string) error {
	if Exists(path) {
		return fmt.Errorf("%s already exists", path)
	}
	return WriteOffices(path, ExampleOffices())
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	data = append(data, '\n')
	return atomicWrite(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// atomicWrite writes through a temp file in the target directory and renames
// it into place so readers never see a partial file.
func atomicWrite(path string, fill func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := fill(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// IsNotExist reports whether err was caused by a missing file.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
