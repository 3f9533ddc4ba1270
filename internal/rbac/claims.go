package rbac

import (
	"encoding/json"
	"strings"
)

// RoleClaim is the tagged union decoded at the identity boundary. Identity
// layers have historically attached role claims in several shapes: a bare
// string, a list of strings, an object with a code (or legacy name) field,
// a list of such objects, or nothing at all. All of them decode without
// error; unrecognized shapes yield an empty claim.
type RoleClaim struct {
	codes []string
}

type roleClaimObject struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts every historical claim shape. It never fails the
// surrounding decode: a shape it cannot interpret becomes the empty claim.
func (c *RoleClaim) UnmarshalJSON(data []byte) error {
	c.codes = nil
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		c.codes = appendCode(nil, single)
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		for _, code := range many {
			c.codes = appendCode(c.codes, code)
		}
		return nil
	}

	var obj roleClaimObject
	if err := json.Unmarshal(data, &obj); err == nil {
		c.codes = appendCode(nil, coalesce(obj.Code, obj.Name))
		return nil
	}

	var objs []roleClaimObject
	if err := json.Unmarshal(data, &objs); err == nil {
		for _, o := range objs {
			c.codes = appendCode(c.codes, coalesce(o.Code, o.Name))
		}
		return nil
	}

	return nil
}

// MarshalJSON writes the canonical list form.
func (c RoleClaim) MarshalJSON() ([]byte, error) {
	if c.codes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.codes)
}

// Codes returns the canonical de-duplicated, order-preserving role code list.
// Empty or blank elements are skipped individually; earlier trackers dropped
// the whole claim when the first element was blank, which silently stripped
// valid roles from mixed claims.
func (c RoleClaim) Codes() []string {
	if len(c.codes) == 0 {
		return nil
	}
	out := make([]string, len(c.codes))
	copy(out, c.codes)
	return out
}

// Empty reports whether the claim normalized to zero roles.
func (c RoleClaim) Empty() bool {
	return len(c.codes) == 0
}

// ParseRoleClaim decodes a raw claim value, typically the session's stored
// roles string. Invalid JSON normalizes to the empty claim.
func ParseRoleClaim(raw string) RoleClaim {
	var claim RoleClaim
	if strings.TrimSpace(raw) == "" {
		return claim
	}
	if err := json.Unmarshal([]byte(raw), &claim); err != nil {
		// Tolerate a bare unquoted code such as "DEV" stored by older
		// identity layers.
		claim.codes = appendCode(nil, raw)
	}
	return claim
}

func appendCode(codes []string, code string) []string {
	code = strings.TrimSpace(code)
	if code == "" {
		return codes
	}
	for _, existing := range codes {
		if existing == code {
			return codes
		}
	}
	return append(codes, code)
}

func coalesce(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
