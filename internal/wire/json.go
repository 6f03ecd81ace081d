package wire

import "encoding/json"

// EncodeVerboseJSON renders v as pretty-printed canonical JSON.
func EncodeVerboseJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodeAbbreviatedJSON renders v as JSON with every known key replaced by
// its short form from the bijective abbreviation dictionary.
func EncodeAbbreviatedJSON(v any) (string, error) {
	tree, err := toTree(v)
	if err != nil {
		return "", err
	}
	short := remapKeys(tree, toShortKey)
	b, err := json.MarshalIndent(short, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeAbbreviatedJSON parses abbreviated-key JSON back into a generic
// tree with full key names restored.
func DecodeAbbreviatedJSON(text string) (any, error) {
	var tree any
	if err := json.Unmarshal([]byte(text), &tree); err != nil {
		return nil, err
	}
	return remapKeys(tree, toFullKey), nil
}

// DecodeVerboseJSON parses verbose JSON into a generic tree.
func DecodeVerboseJSON(text string) (any, error) {
	var tree any
	if err := json.Unmarshal([]byte(text), &tree); err != nil {
		return nil, err
	}
	return tree, nil
}
