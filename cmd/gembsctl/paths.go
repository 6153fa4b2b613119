package main

import "path/filepath"

// gemBSDir is the working-directory-relative directory holding the
// primary state file, the running ledger, and the runtime settings
// file.
const gemBSDir = ".gemBS"

// defaultProjectName is used when no project name has been configured;
// gembsctl is a single-project-per-directory controller in this
// minimal stand-in.
const defaultProjectName = "project"

func statePath(workdir string) string {
	return filepath.Join(workdir, gemBSDir, defaultProjectName+".state")
}

func ledgerPath(workdir string) string {
	return filepath.Join(workdir, gemBSDir, "gemBS_tasks.json")
}

func runtimeConfigPath(workdir string) string {
	return filepath.Join(workdir, gemBSDir, "gembsctl.yaml")
}
