// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-clockwork
//
// go-clockwork is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-clockwork is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-clockwork.  If not, see <https://www.gnu.org/licenses/>.


package config

import (
	"fmt"
	"strconv"

	"github.com/algorand/go-clockwork/protocol"
	"github.com/algorand/go-clockwork/vm"
)

// VersionMajor changes when policy images or the wire protocol break
// compatibility.
const VersionMajor = 3

// VersionMinor changes with backwards-compatible features.
const VersionMinor = 4

// Set through -ldflags -X at build time.
var (
	BuildNumber string
	CommitHash  string
	Branch      string
)

// Version describes this build and the formats it speaks.
type Version struct {
	Major       int
	Minor       int
	BuildNumber int
	CommitHash  string
	Branch      string

	// Protocol is the CFM protocol version sent in every PDU.
	Protocol uint64
	// Policy is the newest policy image version the VM loads.
	Policy uint64
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.BuildNumber)
}

// GetCurrentVersion returns the running build's version.
func GetCurrentVersion() Version {
	build, _ := strconv.Atoi(BuildNumber)
	return Version{
		Major:       VersionMajor,
		Minor:       VersionMinor,
		BuildNumber: build,
		CommitHash:  CommitHash,
		Branch:      Branch,
		Protocol:    protocol.Version,
		Policy:      vm.MaxVersion,
	}
}

// FormatVersionAndLicense is what --version prints.
func FormatVersionAndLicense() string {
	v := GetCurrentVersion()
	return fmt.Sprintf("clockwork %s [%s] (commit #%s)\nCFM protocol v%d, policy images up to v%d\n%s",
		v, v.Branch, v.CommitHash, v.Protocol, v.Policy, GetLicenseInfo())
}

// GetLicenseInfo names the license.
func GetLicenseInfo() string {
	return "go-clockwork is licensed with AGPLv3.0"
}
