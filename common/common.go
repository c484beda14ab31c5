// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package common is used for combining common functions from other packages
// which aren't connected with packet processing itself: errors, logging and
// CPU list handling.
package common

import (
	"runtime"
	"strconv"
	"strings"
)

// GetDefaultCPUs returns default core list {0, 1, ..., cpuNumber-1}
func GetDefaultCPUs(cpuNumber int) []int {
	cpus := make([]int, cpuNumber, cpuNumber)
	for i := 0; i < cpuNumber; i++ {
		cpus[i] = i
	}
	return cpus
}

// HandleCPUList parses cpu list string into array of valid core numbers
// and removes duplicates. Cores which exceed number of cores on machine
// are reported as error.
func HandleCPUList(s string, maxcpu int) ([]int, error) {
	nums, err := parseCPUs(s)
	if err != nil {
		return nil, err
	}
	nums = removeDuplicates(nums)
	valid := dropInvalidCPUs(nums, maxcpu)
	if len(valid) != len(nums) {
		return nil, WrapWithNFError(nil, "requested cpu exceeds maximum cores number on machine", MaxCPUExceedErr)
	}
	return valid, nil
}

// ParseCPUs parses cpu list string like "0-3,8" and checks
// all cores against number of cores on machine.
func ParseCPUs(s string) ([]int, error) {
	cpus, err := HandleCPUList(s, runtime.NumCPU())
	if err != nil {
		return nil, WrapWithNFError(err, "failed to parse cpu list "+s, ParseCPUListErr)
	}
	return cpus, nil
}

// parseCPUs parses cpu list string into array of cpu numbers
func parseCPUs(s string) ([]int, error) {
	var startRange, k int
	nums := make([]int, 0, 256)
	if s == "" {
		return nums, nil
	}
	s = strings.Replace(s, " ", "", -1)
	startRange = -1
	var err error
	for i, j := 0, 0; i <= len(s); i++ {
		if i != len(s) && s[i] == '-' {
			startRange, err = strconv.Atoi(s[j:i])
			if err != nil {
				return nums, err
			}
			j = i + 1
		}

		if i == len(s) || s[i] == ',' {
			r, err := strconv.Atoi(s[j:i])
			if err != nil {
				return nums, err
			}
			if startRange != -1 {
				if startRange > r {
					return nums, WrapWithNFError(nil, "CPU range is invalid, min should not exceed max", InvalidCPURangeErr)
				}
				for k = startRange; k <= r; k++ {
					nums = append(nums, k)
				}
				startRange = -1
			} else {
				nums = append(nums, r)
			}
			if i == len(s) {
				break
			}
			j = i + 1
		}
	}
	return nums, nil
}

func removeDuplicates(array []int) []int {
	result := []int{}
	seen := map[int]bool{}
	for _, val := range array {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = true
		}
	}
	return result
}

// dropInvalidCPUs removes cores which are not present on machine.
func dropInvalidCPUs(nums []int, maxcpu int) []int {
	i := 0
	for _, x := range nums {
		if x < maxcpu {
			nums[i] = x
			i++
		}
	}
	return nums[:i]
}
