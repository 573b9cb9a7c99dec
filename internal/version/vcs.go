// Copyright 2017 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Release builds inject these through the linker:
//
//	-ldflags "-X github.com/sunyihoo/poa/internal/version.gitCommit=<hash> -X ...gitDate=<YYYYMMDD>"
//
// Plain `go build` and `go install` builds fall back to the stamp the go tool embeds.
var gitCommit, gitDate string

// VCSInfo describes the revision the running binary was built from.
// VCSInfo 描述当前可执行文件构建时所在的代码版本。
type VCSInfo struct {
	Commit string // full commit hash
	Date   string // commit date as YYYYMMDD
	Dirty  bool   // built from a modified work tree
}

// VCS returns the revision of the running binary. Linker values win over the
// embedded stamp, which is only trusted when this module is the main module.
func VCS() (VCSInfo, bool) {
	if gitCommit != "" {
		return VCSInfo{Commit: gitCommit, Date: gitDate}, true
	}
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Path != ourPath {
		return VCSInfo{}, false
	}
	return buildInfoVCS(info)
}

func buildInfoVCS(info *debug.BuildInfo) (VCSInfo, bool) {
	var vcs VCSInfo
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			vcs.Commit = setting.Value
		case "vcs.modified":
			vcs.Dirty = setting.Value == "true"
		case "vcs.time":
			if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				vcs.Date = t.UTC().Format("20060102")
			}
		}
	}
	return vcs, vcs.Commit != "" && vcs.Date != ""
}

// ClientName returns the identifier a clique process reports about itself,
// e.g. clique/v0.3.0-unstable-9b68875d-20241014/linux-amd64/go1.23.4.
// ClientName 返回进程对外报告的客户端标识。
func ClientName(clientIdentifier string) string {
	git, _ := VCS()
	return clientName(clientIdentifier, git)
}

func clientName(clientIdentifier string, git VCSInfo) string {
	vsn := WithCommit(git.Commit, git.Date)
	if git.Dirty {
		vsn += "-dirty"
	}
	return fmt.Sprintf("%s/v%s/%s-%s/%s", clientIdentifier, vsn, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
