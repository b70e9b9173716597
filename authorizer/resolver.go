package authorizer

import "fmt"

// ResolveKey selects the directory key whose identifier equals kid
func ResolveKey(dir *KeyDirectory, kid string) (*SigningKey, error) {
	if kid == "" {
		return nil, newError(KindUnknownKey, "resolve key", fmt.Errorf("token has no kid"))
	}
	if dir == nil {
		return nil, newError(KindUnknownKey, "resolve key", fmt.Errorf("kid %s: empty directory", kid))
	}

	key, ok := dir.keys[kid]
	if !ok {
		return nil, newError(KindUnknownKey, "resolve key", fmt.Errorf("kid %s not found in directory", kid))
	}
	return key, nil
}
