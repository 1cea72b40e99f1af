package framework

import (
	"turnserver/internal/apperr"
)

// Field validation follows original_source/server/utility.py's check_dict:
// a missing field produces a framework-sourced "key 'X' of type T missing"
// error and a mistyped one "key 'X' of type T invalid", rather than a panic
// or a zero value silently flowing through.

func requiredString(req map[string]interface{}, key string) (string, *apperr.Error) {
	raw, present := req[key]
	if !present {
		return "", apperr.New(apperr.Framework, "key '%s' of type str missing", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", apperr.New(apperr.Framework, "key '%s' of type str invalid", key)
	}
	return s, nil
}

func requiredNonEmptyString(req map[string]interface{}, key string) (string, *apperr.Error) {
	s, err := requiredString(req, key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", apperr.New(apperr.Framework, "key '%s' must not be empty", key)
	}
	return s, nil
}

func optionalString(req map[string]interface{}, key string) (string, *apperr.Error) {
	raw, present := req[key]
	if !present {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", apperr.New(apperr.Framework, "key '%s' of type str invalid", key)
	}
	return s, nil
}

func requiredInt(req map[string]interface{}, key string) (int, *apperr.Error) {
	raw, present := req[key]
	if !present {
		return 0, apperr.New(apperr.Framework, "key '%s' of type int missing", key)
	}
	n, ok := asInt(raw)
	if !ok {
		return 0, apperr.New(apperr.Framework, "key '%s' of type int invalid", key)
	}
	return n, nil
}

// optionalPositiveInt reports whether key was present at all via its second
// return value, distinguishing "players omitted" (join an existing session)
// from "players: 0" (an invalid value for a new session).
func optionalPositiveInt(req map[string]interface{}, key string) (int, bool, *apperr.Error) {
	raw, present := req[key]
	if !present {
		return 0, false, nil
	}
	n, ok := asInt(raw)
	if !ok || n <= 0 {
		return 0, false, apperr.New(apperr.Framework, "key '%s' of type int invalid", key)
	}
	return n, true, nil
}

func requiredMap(req map[string]interface{}, key string) (map[string]interface{}, *apperr.Error) {
	raw, present := req[key]
	if !present {
		return nil, apperr.New(apperr.Framework, "key '%s' of type dict missing", key)
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, apperr.New(apperr.Framework, "key '%s' of type dict invalid", key)
	}
	return m, nil
}

func requireGameToken(req map[string]interface{}) (gameName, token string, err *apperr.Error) {
	gameName, err = requiredNonEmptyString(req, "game")
	if err != nil {
		return "", "", err
	}
	token, err = requiredNonEmptyString(req, "token")
	if err != nil {
		return "", "", err
	}
	return gameName, token, nil
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case interface{ Int64() (int64, error) }:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
