package authz

import (
	"encoding/json"

	"github.com/mdacme/mdacme/internal/acmeerr"
)

func jsonMarshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "marshal request payload")
	}
	return data, nil
}
