package suite

import "strconv"

// idSeparator joins title-path segments. spec.md does not name one; " > "
// is chosen for readability in reporter output and is treated as a fixed
// implementation detail, not something tests should depend on structurally.
const idSeparator = " > "

// ComputeID derives a TestCase's stable id from its title path: walking
// ancestors root-ward and emitting "[project-title]" for a non-empty
// project, "describe-title" for a describe, and "file-title:row:row" for
// the file node — then reversing so the path reads root-to-leaf, and
// appending the test's own title (§3).
//
// The file segment deliberately repeats the row twice rather than emitting
// row:column; this is a preserved quirk, not a bug (§9 "open question").
func ComputeID(tc *TestCase) string {
	var segments []string
	for s := tc.Suite; s != nil; s = s.Parent {
		switch s.Kind {
		case KindProject:
			if s.Title != "" {
				segments = append(segments, "["+s.Title+"]")
			}
		case KindDescribe:
			segments = append(segments, s.Title)
		case KindFile:
			row := strconv.Itoa(s.Row)
			segments = append(segments, s.Title+":"+row+":"+row)
		case KindRoot:
			// root contributes nothing to the path
		}
	}

	reversed := make([]string, len(segments))
	for i, seg := range segments {
		reversed[len(segments)-1-i] = seg
	}

	path := append(reversed, tc.Title)
	id := path[0]
	for _, seg := range path[1:] {
		id += idSeparator + seg
	}
	return id
}
