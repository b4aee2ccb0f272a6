package update

import (
	"regexp"
	"strconv"
	"strings"
)

var semverPattern = regexp.MustCompile(`^v([0-9]+)\.([0-9]+)\.([0-9]+)(?:[-+][A-Za-z0-9._-]+)?$`)

type semverParts struct {
	major int
	minor int
	patch int
}

func parseSemver(tag string) (semverParts, bool) {
	matches := semverPattern.FindStringSubmatch(strings.TrimSpace(tag))
	if len(matches) != 4 {
		return semverParts{}, false
	}
	major, err := strconv.Atoi(matches[1])
	if err != nil {
		return semverParts{}, false
	}
	minor, err := strconv.Atoi(matches[2])
	if err != nil {
		return semverParts{}, false
	}
	patch, err := strconv.Atoi(matches[3])
	if err != nil {
		return semverParts{}, false
	}
	return semverParts{major: major, minor: minor, patch: patch}, true
}

// isNewerVersion reports whether candidate is newer than current. Tags that
// fail to parse as semver (dev builds) compare by inequality, so any tagged
// release counts as newer than a dev build.
func isNewerVersion(current, candidate string) bool {
	currentTag := strings.TrimSpace(current)
	candidateTag := strings.TrimSpace(candidate)
	if candidateTag == "" {
		return false
	}
	if currentTag == "" {
		return true
	}
	currentSemver, currentOK := parseSemver(currentTag)
	candidateSemver, candidateOK := parseSemver(candidateTag)
	if currentOK && candidateOK {
		if candidateSemver.major != currentSemver.major {
			return candidateSemver.major > currentSemver.major
		}
		if candidateSemver.minor != currentSemver.minor {
			return candidateSemver.minor > currentSemver.minor
		}
		return candidateSemver.patch > currentSemver.patch
	}
	return candidateTag != currentTag
}
