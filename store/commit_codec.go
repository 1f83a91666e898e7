package store

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signature is the author/committer identity line recorded on a commit,
// rendered exactly as git expects it: "Name <email> <unix-ts> <tz>".
// Grounded on the (Name, Email, When) triple used throughout the
// example corpus's git/commit plumbing.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// String renders the signature in git's "Name <email> unixts ±HHMM"
// form, the same format used by commit headers and reflog lines.
func (s Signature) String() string {
	return s.encode()
}

// ParseSignature parses a signature previously rendered by String.
func ParseSignature(line string) (Signature, error) {
	return decodeSignature(line)
}

func (s Signature) encode() string {
	_, offset := s.When.Zone()
	sign := byte('+')
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	tz := fmt.Sprintf("%c%02d%02d", sign, offset/3600, (offset%3600)/60)
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.When.Unix(), tz)
}

func decodeSignature(line string) (Signature, error) {
	open := strings.LastIndexByte(line, '<')
	close := strings.LastIndexByte(line, '>')
	if open < 0 || close < open {
		return Signature{}, fmt.Errorf("store: malformed signature %q", line)
	}
	name := strings.TrimSpace(line[:open])
	email := line[open+1 : close]
	rest := strings.Fields(line[close+1:])
	var when time.Time
	if len(rest) >= 2 {
		ts, err := strconv.ParseInt(rest[0], 10, 64)
		if err == nil {
			when = time.Unix(ts, 0).In(parseTZ(rest[1]))
		}
	}
	return Signature{Name: name, Email: email, When: when}, nil
}

func parseTZ(tz string) *time.Location {
	if len(tz) != 5 {
		return time.UTC
	}
	sign := int64(1)
	if tz[0] == '-' {
		sign = -1
	}
	hours, err1 := strconv.ParseInt(tz[1:3], 10, 64)
	mins, err2 := strconv.ParseInt(tz[3:5], 10, 64)
	if err1 != nil || err2 != nil {
		return time.UTC
	}
	return time.FixedZone("", int(sign*(hours*3600+mins*60)))
}

// Commit is the decoded form of a commit object: a root tree, zero or
// one parent (vost never writes merge commits), an
// author/committer signature pair, and a message.
type Commit struct {
	Tree      OID
	Parent    OID // ZeroOID if this is the initial commit
	Author    Signature
	Committer Signature
	Message   string
}

func (c *Commit) HasParent() bool {
	return !c.Parent.IsZero()
}

// EncodeCommit renders a Commit as a git commit object body.
func EncodeCommit(c *Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	if c.HasParent() {
		fmt.Fprintf(&buf, "parent %s\n", c.Parent)
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author.encode())
	fmt.Fprintf(&buf, "committer %s\n", c.Committer.encode())
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// DecodeCommit parses a git commit object body.
func DecodeCommit(body []byte) (*Commit, error) {
	c := &Commit{}
	lines := bytes.SplitN(body, []byte("\n\n"), 2)
	header := string(lines[0])
	if len(lines) == 2 {
		c.Message = string(lines[1])
	}
	for _, line := range strings.Split(header, "\n") {
		if line == "" {
			continue
		}
		sp := strings.IndexByte(line, ' ')
		if sp < 0 {
			continue
		}
		key, val := line[:sp], line[sp+1:]
		switch key {
		case "tree":
			oid, err := ParseOID(val)
			if err != nil {
				return nil, fmt.Errorf("store: malformed commit tree: %w", err)
			}
			c.Tree = oid
		case "parent":
			oid, err := ParseOID(val)
			if err != nil {
				return nil, fmt.Errorf("store: malformed commit parent: %w", err)
			}
			c.Parent = oid
		case "author":
			sig, err := decodeSignature(val)
			if err != nil {
				return nil, err
			}
			c.Author = sig
		case "committer":
			sig, err := decodeSignature(val)
			if err != nil {
				return nil, err
			}
			c.Committer = sig
		}
	}
	return c, nil
}
