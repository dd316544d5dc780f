package tree

import "github.com/google/uuid"

// IDSource produces candidate node ids.
type IDSource func() string

// GenerateID draws ids from src until one is not in existing. existing is
// only read. A nil src uses random UUIDs, for which the retry is a safety net.
func GenerateID(existing map[string]struct{}, src IDSource) string {
	if src == nil {
		src = uuid.NewString
	}
	id := src()
	for {
		if _, taken := existing[id]; !taken && id != "" {
			return id
		}
		id = src()
	}
}
