// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package common

import (
	"reflect"
	"strconv"
	"testing"
)

var maxCpuErr = WrapWithNFError(nil, "requested cpu exceeds maximum cores number on machine", MaxCPUExceedErr)
var invalidCpuRangeErr = WrapWithNFError(nil, "CPU range is invalid, min should not exceed max", InvalidCPURangeErr)

var cpuParseTests = []struct {
	line        string // input
	expected    []int  // expected result
	expectedErr error
}{
	{"", []int{}, nil},
	{"1-5", []int{1, 2, 3, 4, 5}, nil},
	{"1,10-13,9", []int{1, 10, 11, 12, 13, 9}, nil},
	{"10-14,13-15", []int{10, 11, 12, 13, 14, 13, 14, 15}, nil},
	{"0, 2-3", []int{0, 2, 3}, nil},
	{"1-3,6-", []int{1, 2, 3}, &strconv.NumError{Func: "Atoi", Num: "", Err: strconv.ErrSyntax}},
	{"-1", []int{}, &strconv.NumError{Func: "Atoi", Num: "", Err: strconv.ErrSyntax}},
	{"10-6", []int{}, GetNFError(invalidCpuRangeErr)},
	{"1-3,10-6", []int{1, 2, 3}, GetNFError(invalidCpuRangeErr)},
}

func TestParseCPUs(t *testing.T) {
	for _, tt := range cpuParseTests {
		actual, err := parseCPUs(tt.line)
		if !reflect.DeepEqual(GetNFError(err).Cause(), tt.expectedErr) && !reflect.DeepEqual(err, tt.expectedErr) {
			t.Errorf("ParseCpuList(\"%s\"): unexpected error:\ngot: %v,\nwant: %v\n", tt.line, err, tt.expectedErr)
			continue
		}
		if !reflect.DeepEqual(actual, tt.expected) {
			t.Errorf("ParseCpuList(\"%s\"): got %v, want %v", tt.line, actual, tt.expected)
		}
	}
}

var dropInvalidCPUsTests = []struct {
	cpus     []int
	maxcpu   int
	expected []int // expected valid cpu list
}{
	{[]int{}, 20, []int{}},
	{[]int{1, 2, 100, 1, 2, 100}, 20, []int{1, 2, 1, 2}},
	{[]int{1, 2, 100, 100, 2, 100}, 20, []int{1, 2, 2}},
}

func TestDropInvalidCPUs(t *testing.T) {
	for _, tt := range dropInvalidCPUsTests {
		actual := dropInvalidCPUs(tt.cpus, tt.maxcpu)
		if !reflect.DeepEqual(actual, tt.expected) {
			t.Errorf("DropInvalidCPUs(\"%v,%d\"): got %v, want %v", tt.cpus, tt.maxcpu, actual, tt.expected)
		}
	}
}

var removeDuplicatesTests = []struct {
	cpus     []int
	expected []int
}{
	{[]int{}, []int{}},
	{[]int{1, 2, 100, 100, 2, 100}, []int{1, 2, 100}},
	{[]int{1, 2, 100, 3}, []int{1, 2, 100, 3}},
	{[]int{1, 2, 1, 100, 100, 3}, []int{1, 2, 100, 3}},
}

func TestRemoveDuplicates(t *testing.T) {
	for _, tt := range removeDuplicatesTests {
		actual := removeDuplicates(tt.cpus)
		if !reflect.DeepEqual(actual, tt.expected) {
			t.Errorf("removeDuplicates(\"%v\"): got %v, want %v", tt.cpus, actual, tt.expected)
		}
	}
}

func TestHandleCPUList(t *testing.T) {
	cpus, err := HandleCPUList("0-2,1", 4)
	if err != nil {
		t.Fatalf("HandleCPUList: unexpected error %v", err)
	}
	if !reflect.DeepEqual(cpus, []int{0, 1, 2}) {
		t.Errorf("HandleCPUList: got %v, want [0 1 2]", cpus)
	}
	if _, err := HandleCPUList("0-5", 4); GetNFErrorCode(err) != MaxCPUExceedErr {
		t.Errorf("HandleCPUList: got error %v, want code %d", err, MaxCPUExceedErr)
	}
}

var ErrorCauseTests = []struct {
	testError        error
	expectedCause    error
	expectedGetNFErr *NFError
	expectedCode     ErrorCode
}{
	{&strconv.NumError{Func: "Atoi", Num: "", Err: strconv.ErrSyntax}, nil, nil, -1},

	{WrapWithNFError(&strconv.NumError{Func: "Atoi", Num: "", Err: strconv.ErrSyntax}, "failed to parse cpu", ParseCPUListErr),
		&strconv.NumError{Func: "Atoi", Num: "", Err: strconv.ErrSyntax},
		&(NFError{CauseErr: &strconv.NumError{Func: "Atoi", Num: "", Err: strconv.ErrSyntax}, Message: "failed to parse cpu", Code: ParseCPUListErr}),
		ParseCPUListErr},

	{WrapWithNFError(maxCpuErr, "failed to parse cpu", ParseCPUListErr),
		&(NFError{CauseErr: nil, Message: "requested cpu exceeds maximum cores number on machine", Code: MaxCPUExceedErr}),
		&(NFError{CauseErr: maxCpuErr, Message: "failed to parse cpu", Code: ParseCPUListErr}), ParseCPUListErr},

	{WrapWithNFError(nil, "failed to parse cpu", ParseCPUListErr),
		&(NFError{CauseErr: nil, Message: "failed to parse cpu", Code: ParseCPUListErr}),
		&(NFError{CauseErr: nil, Message: "failed to parse cpu", Code: ParseCPUListErr}), ParseCPUListErr},

	{NewParseError("short frame"),
		&(NFError{Message: "short frame", Code: ParseErr}),
		&(NFError{Message: "short frame", Code: ParseErr}), ParseErr},

	{nil, nil, nil, -1},
}

// TestErrorCause checks GetNFError, GetNFErrorCode, and Cause methods.
func TestErrorCause(t *testing.T) {
	for _, tt := range ErrorCauseTests {
		if !reflect.DeepEqual(GetNFError(tt.testError), tt.expectedGetNFErr) {
			t.Errorf("GetNFError: got: %v, want: %v\ntypes: %v, %v", GetNFError(tt.testError), tt.expectedGetNFErr,
				reflect.TypeOf(GetNFError(tt.testError)), reflect.TypeOf(tt.expectedGetNFErr))
		}
		if !reflect.DeepEqual(GetNFError(tt.testError).Cause(), tt.expectedCause) {
			t.Errorf("GetNFError.Cause: got: %v, want: %v\ntypes: %v, %v", GetNFError(tt.testError).Cause(), tt.expectedCause,
				reflect.TypeOf(GetNFError(tt.testError).Cause()), reflect.TypeOf(tt.expectedCause))
		}
		if !reflect.DeepEqual(GetNFErrorCode(tt.testError), tt.expectedCode) {
			t.Errorf("NFError code: got: %v, want: %v\n", GetNFError(tt.testError), tt.expectedGetNFErr)
		}
	}
}

var logTypeTests = []struct {
	line     string
	expected LogType
	code     ErrorCode
}{
	{"", No | Initialization | Debug, -1},
	{"initialization", No | Initialization, -1},
	{"init, verbose", No | Initialization | Verbose, -1},
	{"no", No, -1},
	{"loud", 0, ConfigErr},
}

func TestParseLogType(t *testing.T) {
	for _, tt := range logTypeTests {
		actual, err := ParseLogType(tt.line)
		if GetNFErrorCode(err) != tt.code {
			t.Errorf("ParseLogType(%q): got error %v, want code %d", tt.line, err, tt.code)
			continue
		}
		if actual != tt.expected {
			t.Errorf("ParseLogType(%q): got %d, want %d", tt.line, actual, tt.expected)
		}
	}
}

func TestSetLogType(t *testing.T) {
	defer SetLogType(GetLogType())
	SetLogType(No | Verbose)
	if GetLogType() != No|Verbose {
		t.Errorf("GetLogType: got %d, want %d", GetLogType(), No|Verbose)
	}
}
