// Package safelog provides a safer logging wrapper around the standard
// logging package: an io.Writer that scrubs addresses and key material
// before handing lines to the real sink.
package safelog

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"sync"
)

const ipv4Address = `\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`

// %3A and %3a are for matching : in URL-encoded IPv6 addresses
const colon = `(:|%3a|%3A)`
const ipv6Address = `([0-9a-fA-F]{0,4}` + colon + `){5,7}([0-9a-fA-F]{0,4})?`
const ipv6Compressed = `([0-9a-fA-F]{0,4}` + colon + `){0,5}([0-9a-fA-F]{0,4})?(` + colon + `){2}([0-9a-fA-F]{0,4}` + colon + `){0,5}([0-9a-fA-F]{0,4})?`
const ipv6Full = `(` + ipv6Address + `(` + ipv4Address + `))` +
	`|(` + ipv6Compressed + `(` + ipv4Address + `))` +
	`|(` + ipv6Address + `)` + `|(` + ipv6Compressed + `)`
const optionalPort = `(:\d{1,5})?`
const addressPattern = `((` + ipv4Address + `)|(\[(` + ipv6Full + `)\])|(` + ipv6Full + `))` + optionalPort
const fullAddrPattern = `(?:^|\s|[^\w:])(` + addressPattern + `)(?:\s|(:\s)|[^\w:]|$)`

// pemBlockPattern catches an entire PEM-encoded private key block so a
// passphrase callback that accidentally logs a key never leaks it whole.
const pemBlockPattern = `-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`

var scrubberPatterns = []*regexp.Regexp{
	regexp.MustCompile(fullAddrPattern),
	regexp.MustCompile(pemBlockPattern),
}

// LogScrubber is an io.Writer that can be used as the output for a logger
// that first sanitizes logs and then writes to the provided io.Writer.
type LogScrubber struct {
	Output io.Writer
	buffer []byte

	lock sync.Mutex
}

func (ls *LogScrubber) Lock()   { (*ls).lock.Lock() }
func (ls *LogScrubber) Unlock() { (*ls).lock.Unlock() }

// Scrub replaces addresses and embedded PEM private-key blocks in b with a
// placeholder.
func Scrub(b []byte) []byte {
	scrubbedBytes := b
	for i, pattern := range scrubberPatterns {
		if i == 1 {
			// PEM blocks are replaced wholesale, no capture groups.
			scrubbedBytes = pattern.ReplaceAll(scrubbedBytes, []byte("[scrubbed-key]"))
			continue
		}
		// this is a workaround since go does not yet support look ahead or look
		// behind for regular expressions.
		var newBytes []byte
		index := 0
		for {
			loc := pattern.FindSubmatchIndex(scrubbedBytes[index:])
			if loc == nil {
				break
			}
			newBytes = append(newBytes, scrubbedBytes[index:index+loc[2]]...)
			newBytes = append(newBytes, []byte("[scrubbed]")...)
			index = index + loc[3]
		}
		scrubbedBytes = append(newBytes, scrubbedBytes[index:]...)
	}
	return scrubbedBytes
}

// ScrubSecret redacts an entire secret value, used by the passphrase store
// and ticket ring instead of the pattern-based Scrub when the whole value
// is sensitive rather than just an embedded substring.
func ScrubSecret(secret []byte) string {
	if len(secret) == 0 {
		return "[empty]"
	}
	return "[redacted " + strconv.Itoa(len(secret)) + " bytes]"
}

func (ls *LogScrubber) Write(b []byte) (n int, err error) {
	ls.Lock()
	defer ls.Unlock()

	n = len(b)
	ls.buffer = append(ls.buffer, b...)
	for {
		i := bytes.LastIndexByte(ls.buffer, '\n')
		if i == -1 {
			return
		}
		fullLines := ls.buffer[:i+1]
		_, err = ls.Output.Write(Scrub(fullLines))
		if err != nil {
			return
		}
		ls.buffer = ls.buffer[i+1:]
	}
}
