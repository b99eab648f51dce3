// Package identifier validates user-supplied feature names before any
// filesystem path is derived from them. Validation is pure and is performed
// fresh at every boundary where a name enters the system; results are never
// cached, since the same name can be presented in differently malicious
// forms across calls.
package identifier

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// MaxNameLength is the maximum accepted length of a raw feature name.
const MaxNameLength = 50

// DraftPrefix marks an initial-draft descriptor file. It is stripped from
// the raw name before the post-strip checks and before the authorized name
// is returned.
const DraftPrefix = "INITIAL_"

// Check identifies which of the six ordered security checks rejected a name.
type Check int

const (
	CheckResolvedTraversal Check = iota + 1 // 1: traversal in the root-joined resolved path
	CheckGrammar                            // 2: whitelist grammar violation
	CheckLength                             // 3: name exceeds MaxNameLength
	CheckStrippedTraversal                  // 4: traversal after prefix stripping
	CheckMetacharacters                     // 5: shell/command-injection metacharacters
	CheckDegenerate                         // 6: name is a restatement of the prefix
)

// String returns a short description of the check for diagnostics.
func (c Check) String() string {
	switch c {
	case CheckResolvedTraversal:
		return "resolved path traversal"
	case CheckGrammar:
		return "character whitelist"
	case CheckLength:
		return "maximum length"
	case CheckStrippedTraversal:
		return "post-strip traversal"
	case CheckMetacharacters:
		return "shell metacharacters"
	case CheckDegenerate:
		return "degenerate name"
	default:
		return "unknown"
	}
}

// Rejection explains why a name was refused. Callers must not construct any
// path from a rejected name.
type Rejection struct {
	Name   string // The raw name as presented
	Check  Check  // Which check failed (checks short-circuit in order)
	Detail string // Human-readable explanation
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	return fmt.Sprintf("feature name %q rejected by check %d (%s): %s", r.Name, r.Check, r.Check, r.Detail)
}

var nameGrammar = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// shellMeta lists command-injection metacharacters refused by check 5.
// The whitelist in check 2 already excludes these; the duplicate check
// against a distinct character class is deliberate defense in depth.
const shellMeta = ";&|$`"

// Validate applies the six security checks to rawName, in order, stopping
// at the first failure. On success it returns the authorized name: the raw
// name with the draft prefix stripped. workRoot is the directory the name
// would be joined under; the traversal checks run against that join.
func Validate(rawName, workRoot string) (string, *Rejection) {
	// Check 1: join to the work root and inspect the resolved form. Encoded
	// or compound traversal that survives cleaning shows up as the relative
	// path escaping the root.
	if escapesRoot(rawName, workRoot) {
		return "", &Rejection{
			Name:   rawName,
			Check:  CheckResolvedTraversal,
			Detail: "resolved path escapes the working root",
		}
	}

	// Check 2: strict whitelist grammar.
	if !nameGrammar.MatchString(rawName) {
		return "", &Rejection{
			Name:   rawName,
			Check:  CheckGrammar,
			Detail: "only ASCII letters, digits, underscore and hyphen are allowed",
		}
	}

	// Check 3: length cap.
	if len(rawName) > MaxNameLength {
		return "", &Rejection{
			Name:   rawName,
			Check:  CheckLength,
			Detail: fmt.Sprintf("name exceeds %d characters", MaxNameLength),
		}
	}

	// Check 4: re-check the extracted name after prefix stripping. A
	// traversal segment hidden inside the stripped prefix would otherwise
	// resurface when the extracted name is used.
	stripped := strings.TrimPrefix(rawName, DraftPrefix)
	if strings.Contains(stripped, "..") || escapesRoot(stripped, workRoot) {
		return "", &Rejection{
			Name:   rawName,
			Check:  CheckStrippedTraversal,
			Detail: "extracted name contains a traversal segment",
		}
	}

	// Check 5: shell metacharacters.
	if strings.ContainsAny(rawName, shellMeta) {
		return "", &Rejection{
			Name:   rawName,
			Check:  CheckMetacharacters,
			Detail: "name contains shell metacharacters",
		}
	}

	// Check 6: reject names that are semantically empty once the prefix is
	// stripped ("INITIAL_", "INITIAL_INITIAL" and the like).
	if isPrefixRestatement(stripped) {
		return "", &Rejection{
			Name:   rawName,
			Check:  CheckDegenerate,
			Detail: "name is empty or restates the draft prefix",
		}
	}

	return stripped, nil
}

// escapesRoot reports whether joining name under root and resolving the
// result leaves the root. The check runs post-join so cleaned forms like
// "a/../../b" are caught, not just literal ".." substrings.
func escapesRoot(name, root string) bool {
	if root == "" {
		root = "."
	}
	joined := filepath.Join(root, name)
	rel, err := filepath.Rel(root, joined)
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// isPrefixRestatement reports whether the prefix-stripped name is empty or
// is itself just another spelling of the draft prefix.
func isPrefixRestatement(stripped string) bool {
	if stripped == "" {
		return true
	}
	bare := strings.TrimSuffix(DraftPrefix, "_")
	return strings.EqualFold(stripped, bare) || strings.EqualFold(stripped, DraftPrefix)
}
