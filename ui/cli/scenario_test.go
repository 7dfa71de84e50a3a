// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	gen "github.com/flavienbert/digitalocean/internal/crypto/ssh"
	"github.com/flavienbert/digitalocean/internal/fakeapi"
	"github.com/flavienbert/digitalocean/internal/model"
	"github.com/flavienbert/digitalocean/internal/scenario"
)

// TestScenarioRun_DefaultSet runs Test-42, Test-43 and Test-44 end to end.
func TestScenarioRun_DefaultSet(t *testing.T) {
	fake, flags := newFake(t, fakeapi.Options{})

	out, err := executeCommand(t, withFlags(flags, "scenario", "run", "--fixed-prefix", "--key-type", "ed25519")...)
	require.NoError(t, err, out)
	for _, name := range []string{"Test-42", "Test-43", "Test-44"} {
		require.Contains(t, out, "PASS  "+name)
	}
	require.Contains(t, out, "deletion-visible")
	require.Contains(t, out, "Teardown: 0 key(s) removed, 0 failed")
	require.Equal(t, 0, fake.Len())
}

func TestScenarioRun_LaggingListing(t *testing.T) {
	fake, flags := newFake(t, fakeapi.Options{ListLag: 2})

	out, err := executeCommand(t, withFlags(flags, "scenario", "run", "--count", "3", "--rename-by", "fingerprint", "--key-type", "ed25519")...)
	require.NoError(t, err, out)
	require.Equal(t, 3, strings.Count(out, "PASS"), out)
	require.Equal(t, 0, fake.Len())
}

func TestScenarioRun_FailureIsReportedAndCleanedUp(t *testing.T) {
	fake, flags := newFake(t, fakeapi.Options{ListLag: 1})
	fake.FailNext("rename", http.StatusInternalServerError, "boom")

	out, err := executeCommand(t, withFlags(flags, "scenario", "run", "--count", "2", "--key-type", "ed25519")...)
	require.ErrorContains(t, err, "1 of 2 scenario(s) failed")
	require.Contains(t, out, "FAIL")
	require.Contains(t, out, "transport:")
	require.Contains(t, out, "Teardown: 1 key(s) removed, 0 failed")
	require.Equal(t, 0, fake.Len(), "teardown removes the key of the failed scenario")
}

func TestScenarioRun_BadOptions(t *testing.T) {
	_, flags := newFake(t, fakeapi.Options{})

	_, err := executeCommand(t, withFlags(flags, "scenario", "run", "--rename-by", "name")...)
	require.ErrorContains(t, err, "unknown rename mode")

	_, err = executeCommand(t, withFlags(flags, "scenario", "run", "--key-type", "dsa")...)
	require.ErrorContains(t, err, "unknown key type")
}

func TestScenarioOptions(t *testing.T) {
	o := scenarioOptions{count: 4, renameBy: "id"}
	set, err := o.scenarios("Run-", time.Second)
	require.NoError(t, err)
	require.Len(t, set, 4)
	for _, sc := range set {
		require.Equal(t, scenario.ByID, sc.RenameBy)
	}
	require.Equal(t, "Run-45", set[3].Name)

	set, err = scenarioOptions{}.scenarios("Run-", 3*time.Second)
	require.NoError(t, err)
	require.Len(t, set, 3)
	require.Equal(t, scenario.FixedPause, set[2].Deletion)
	require.Equal(t, 3*time.Second, set[2].Pause)

	g, err := scenarioOptions{}.generator(1024)
	require.NoError(t, err)
	require.Equal(t, gen.RSAGenerator{Bits: 1024}, g)
}

func TestCleanup(t *testing.T) {
	fake, flags := newFake(t, fakeapi.Options{})
	for _, name := range []string{"Test-a", "Test-b", "keep"} {
		pub, err := gen.GenerateEd25519PublicKey(name)
		require.NoError(t, err)
		_, err = executeCommand(t, withFlags(flags, "key", "create", name, pub)...)
		require.NoError(t, err)
	}

	out, err := executeCommand(t, withFlags(flags, "cleanup", "--dry-run")...)
	require.NoError(t, err)
	require.Contains(t, out, "Test-a")
	require.NotContains(t, out, "keep")
	require.Equal(t, 3, fake.Len())

	out, err = executeCommand(t, withFlags(flags, "cleanup", "--prefix", "Test-")...)
	require.NoError(t, err, out)
	require.Contains(t, out, "2 key(s) removed, 0 failed")
	require.Equal(t, 1, fake.Len())
}

func TestCleanup_RefusesEmptyPrefix(t *testing.T) {
	_, flags := newFake(t, fakeapi.Options{})
	_, err := executeCommand(t, withFlags(flags, "cleanup", "--scenario-prefix", "")...)
	require.ErrorContains(t, err, "empty prefix")
}

func TestRenderReport(t *testing.T) {
	k := model.Key{ID: "7", Fingerprint: "aa", Name: "Test-7"}
	rep := scenario.Report{
		Prefix: "Test-",
		Results: []scenario.Result{
			{Scenario: scenario.Scenario{Name: "Test-42"}, State: scenario.DeletionVisible, Elapsed: time.Second},
			{Scenario: scenario.Scenario{Name: "Test-43"}, State: scenario.Renamed,
				Err: &scenario.StepError{Step: "await-rename", Kind: scenario.KindTimeout, Err: errors.New("deadline")}},
		},
		Teardown: scenario.TeardownReport{Cleanups: []scenario.Cleanup{{Key: k, Err: errors.New("stuck")}}},
	}

	out := renderReport(rep, newReportStyles(false))
	require.Contains(t, out, "Run Test-")
	require.Contains(t, out, "PASS  Test-42  deletion-visible  1s")
	require.Contains(t, out, "FAIL  Test-43  renamed")
	require.Contains(t, out, "timeout: ")
	require.Contains(t, out, "0 key(s) removed, 1 failed")
	require.Contains(t, out, "left behind Test-7 (7, aa): stuck")
}
