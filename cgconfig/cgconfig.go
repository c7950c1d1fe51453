// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package cgconfig provides a mechanism to create a bigcg session
// from a shared configuration. Cgconfig uses the configuration
// mechanism in package github.com/grailbio/base/config, and reads a
// default profile from $HOME/.bigcg/config. For example, the profile
//
//	param bigcg parallelism = 16
//	param bigcg trace = "/tmp/bigcg.trace"
//
// runs local sessions with 16 concurrent leaf tasks and writes a
// Chrome trace on shutdown.
package cgconfig

import (
	"flag"
	"os"

	"github.com/grailbio/base/config"
	"github.com/grailbio/base/must"
	"github.com/grailbio/bigcg/exec"
)

// Path determines the location of the bigcg profile read by Parse.
var Path = os.ExpandEnv("$HOME/.bigcg/config")

// Parse registers configuration flags and calls flag.Parse. It reads
// the bigcg configuration from Path, and returns the session as
// configured by the profile and any flags provided. Parse panics if
// session creation fails.
func Parse() *exec.Session {
	config.RegisterFlags("", Path)
	flag.Parse()
	must.Nil(config.ProcessFlags())
	var sess *exec.Session
	config.Must("bigcg", &sess)
	return sess
}
