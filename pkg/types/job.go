// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the records shared by the provisioner, the status
// relay, and the batch converter, along with the application configuration.
package types

import (
	"path/filepath"
	"strings"
	"time"
)

// InstallStatus is the phase of a provisioning attempt.
type InstallStatus string

const (
	InstallPending     InstallStatus = "pending"
	InstallDownloading InstallStatus = "downloading"
	InstallInstalling  InstallStatus = "installing"
	InstallSucceeded   InstallStatus = "succeeded"
	InstallFailed      InstallStatus = "failed"
)

// InstallationTask is one provisioning attempt. It exists only when the
// tool binary was missing at startup.
type InstallationTask struct {
	// InstallerURL is the source locator of the installer artifact.
	InstallerURL string `json:"installer_url" yaml:"installer_url"`

	// ArtifactPath is where the installer is stored locally.
	ArtifactPath string `json:"artifact_path" yaml:"artifact_path"`

	// TargetPath is the binary expected after a successful install.
	TargetPath string `json:"target_path" yaml:"target_path"`

	Status InstallStatus `json:"status" yaml:"status"`

	// Reason explains a failed status.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Downloaded is false when an existing artifact was reused.
	Downloaded bool `json:"downloaded" yaml:"downloaded"`
}

// OutcomeStatus is the result of converting one file.
type OutcomeStatus string

const (
	OutcomePending OutcomeStatus = "pending"
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// Outcome records what happened to one input of a ConversionJob.
type Outcome struct {
	Input  string        `json:"input" yaml:"input"`
	Output string        `json:"output" yaml:"output"`
	Status OutcomeStatus `json:"status" yaml:"status"`
	Reason string        `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// ConversionJob is one batch run over the inputs discovered in Dir.
type ConversionJob struct {
	ID string `json:"id" yaml:"id"`

	// Dir is the folder the inputs were discovered in.
	Dir string `json:"dir" yaml:"dir"`

	// Inputs are full paths in discovery order.
	Inputs []string `json:"inputs" yaml:"inputs"`

	InputSuffix  string `json:"input_suffix" yaml:"input_suffix"`
	OutputSuffix string `json:"output_suffix" yaml:"output_suffix"`

	// Current is the number of inputs processed so far.
	Current int `json:"current" yaml:"current"`

	// Outcomes is parallel to Inputs.
	Outcomes []Outcome `json:"outcomes" yaml:"outcomes"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// OutputPath derives the output for input i: same directory, input suffix
// (matched case-insensitively) replaced by the output suffix.
func (j *ConversionJob) OutputPath(i int) string {
	return ReplaceSuffix(j.Inputs[i], j.InputSuffix, j.OutputSuffix)
}

// ReplaceSuffix swaps a trailing from (case-insensitive) for to. A path that
// does not end in from gets to appended instead.
func ReplaceSuffix(path, from, to string) string {
	dir, name := filepath.Split(path)
	if from != "" && len(name) >= len(from) && strings.EqualFold(name[len(name)-len(from):], from) {
		name = name[:len(name)-len(from)]
	}
	return dir + name + to
}
