package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadCSVCredentials reads credentials from a CSV file with a header row containing
// at least "username" and "password" and optionally "role". Rows with an empty
// username or password are skipped.
func LoadCSVCredentials(path string) ([]Credential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening credentials: %w", err)
	}
	defer f.Close()

	creds, err := ParseCSVCredentials(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return creds, nil
}

// ParseCSVCredentials parses CSV credentials from r.
func ParseCSVCredentials(r io.Reader) ([]Credential, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, err
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	userCol, hasUser := columns["username"]
	passCol, hasPass := columns["password"]
	if !hasUser || !hasPass {
		return nil, errors.New(`header must contain "username" and "password"`)
	}
	roleCol, hasRole := columns["role"]

	field := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var creds []Credential
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		cred := Credential{
			Username: field(row, userCol),
			Password: field(row, passCol),
		}
		if hasRole {
			cred.Role = field(row, roleCol)
		}
		if cred.Username == "" || cred.Password == "" {
			continue
		}
		creds = append(creds, cred)
	}

	return creds, nil
}
