// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package authz

import (
	"fmt"
	"regexp"
	"strconv"
)

var rankPattern = regexp.MustCompile(`^([OEW])-(\d{1,2})$`)

// meetsMinRank reports whether rank (e.g. "O-6") is at or above min (e.g.
// "O-5"). Only ranks within the same pay grade category (O/E/W) compare;
// a rank from a different category never satisfies a min from another, since
// the spec's edge policy is scoped to officer rank for emergency
// reallocation approval.
func meetsMinRank(rank, min string) (bool, error) {
	rCat, rNum, err := parseRank(rank)
	if err != nil {
		return false, err
	}
	mCat, mNum, err := parseRank(min)
	if err != nil {
		return false, err
	}
	if rCat != mCat {
		return false, nil
	}
	return rNum >= mNum, nil
}

func parseRank(s string) (category string, num int, err error) {
	m := rankPattern.FindStringSubmatch(s)
	if m == nil {
		return "", 0, fmt.Errorf("authz: invalid rank %q", s)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("authz: invalid rank number in %q", s)
	}
	return m[1], n, nil
}
