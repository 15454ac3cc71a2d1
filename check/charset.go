package check

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// charsetName extracts the encoding name from a leading @charset rule. CSS
// requires the exact form `@charset "name";` at the very start of the file,
// double quotes included.
func charsetName(data []byte) string {
	const prefix = `@charset "`
	if !bytes.HasPrefix(data, []byte(prefix)) {
		return ""
	}
	rest := data[len(prefix):]
	end := bytes.Index(rest, []byte(`";`))
	if end < 0 {
		return ""
	}
	return string(rest[:end])
}

// decodeStylesheet converts raw stylesheet bytes to UTF-8. Precedence follows
// the cascade browsers use: a byte order mark wins, then a forced encoding
// from the command line, then a leading @charset rule. Plain bytes pass
// through untouched.
func decodeStylesheet(data []byte, enc srcEncoding, forced encoding.Encoding) ([]byte, error) {
	if enc != encUnknown {
		out := new(bytes.Buffer)
		if _, err := out.ReadFrom(selectReader(bytes.NewReader(data), enc)); err != nil {
			return nil, fmt.Errorf("unable to decode input: %w", err)
		}
		return out.Bytes(), nil
	}

	cp := forced
	if cp == nil {
		name := charsetName(data)
		if len(name) == 0 || strings.EqualFold(name, "utf-8") {
			return data, nil
		}
		var err error
		if cp, err = ianaindex.IANA.Encoding(name); err != nil || cp == nil {
			return nil, fmt.Errorf("unsupported character set %q declared by @charset", name)
		}
	}

	out, err := cp.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("unable to decode input: %w", err)
	}
	return out, nil
}
