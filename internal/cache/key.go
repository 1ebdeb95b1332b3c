package cache

import (
	"encoding/json"
	"fmt"
)

// Args are the named arguments of a cached read
type Args map[string]interface{}

// Key builds "{resource}:{operation}:{json(args)}".
// encoding/json writes map keys in sorted order, so equal args give equal keys.
func Key(resource, operation string, args Args) (string, error) {
	if args == nil {
		args = Args{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache args: %w", err)
	}
	return fmt.Sprintf("%s:%s:%s", resource, operation, encoded), nil
}

// ResourcePrefix is the invalidation prefix covering every key of resource
func ResourcePrefix(resource string) string {
	return resource + ":"
}
