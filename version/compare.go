package version

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Compare orders two release tags such as "v1.4.0" or "1.4.0-rc.1".
// Missing minor or patch numbers count as zero and a pre-release suffix sorts
// before the release it precedes.
func Compare(a, b string) (int, error) {
	av, apre, err := parse(a)
	if err != nil {
		return 0, err
	}

	bv, bpre, err := parse(b)
	if err != nil {
		return 0, err
	}

	for i := range av {
		if c := cmp.Compare(av[i], bv[i]); c != 0 {
			return c, nil
		}
	}

	switch {
	case apre == bpre:
		return 0, nil
	case apre == "":
		return 1, nil
	case bpre == "":
		return -1, nil
	default:
		return strings.Compare(apre, bpre), nil
	}
}

func parse(tag string) (numbers [3]int, pre string, err error) {
	s := strings.TrimPrefix(strings.TrimSpace(tag), "v")
	s, _, _ = strings.Cut(s, "+")
	s, pre, _ = strings.Cut(s, "-")

	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return numbers, "", fmt.Errorf("invalid version %q", tag)
	}

	for i, part := range parts {
		if numbers[i], err = strconv.Atoi(part); err != nil {
			return numbers, "", fmt.Errorf("invalid version %q", tag)
		}
	}

	return numbers, pre, nil
}
