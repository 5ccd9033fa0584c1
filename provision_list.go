package auth

import (
	"io"

	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// ProvisionList is the document read by LoadProvisionList
type ProvisionList struct {
	Users []ProvisionItem `yaml:"users" json:"users"`
}

// LoadProvisionList decodes a YAML provisioning document. Items are not
// validated here, UpsertList reports invalid ones in its results.
//
//	users:
//	  - user: {username: alice, password: s3cret}
//	    roles: [admin]
//	    forceUpdate: true
func LoadProvisionList(r io.Reader) ([]ProvisionItem, error) {
	var list ProvisionList
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&list); err != nil {
		if err == io.EOF {
			return []ProvisionItem{}, nil
		}
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to decode provisioning list")
	}

	return list.Users, nil
}
