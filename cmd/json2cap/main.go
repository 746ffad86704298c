// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	capcodec "github.com/stillunfolding/capastrophic"
)

var outPath string

func defaultOutputPath(inputPath string) string {
	name := filepath.Base(inputPath)
	name = name[:len(name)-len(filepath.Ext(name))]
	ts := time.Now().UTC().Format("20060102T150405Z")
	return filepath.Join("output", fmt.Sprintf("%s_%s%s", ts, name, ".cap"))
}

func run(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}

	components, err := capcodec.LoadComponentSetFromJSON(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", inputPath, err)
	}

	capBytes, err := capcodec.EncodeComponentSet(components)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", inputPath, err)
	}

	dest := outPath
	if dest == "" {
		dest = defaultOutputPath(inputPath)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(dest, capBytes, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	log.Printf("wrote %s (%d bytes)", dest, len(capBytes))
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "json2cap <file>",
		Short: "Re-encode a cap2json intermediate JSON document into a CAP file",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	rootCmd.Flags().StringVarP(&outPath, "output", "o", "", "output path (default output/<ts>_<name>.cap)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
