// Copyright 2024 Capastrophic authors. All rights reserved.
// Use of this source code is governed by the Apache v2 license
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	capcodec "github.com/stillunfolding/capastrophic"
)

var (
	outPath string
	pretty  bool
)

func prettyPrint(buf []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, buf, "", "  "); err != nil {
		log.Println("JSON indent error:", err)
		return string(buf)
	}
	return out.String()
}

func defaultOutputPath(inputPath, ext string) string {
	name := filepath.Base(inputPath)
	name = name[:len(name)-len(filepath.Ext(name))]
	ts := time.Now().UTC().Format("20060102T150405Z")
	return filepath.Join("output", fmt.Sprintf("%s_%s%s", ts, name, ext))
}

func run(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	ef, err := capcodec.OpenExp(inputPath, nil)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", inputPath, err)
	}
	defer ef.Close()

	buf, err := ef.MarshalIntermediateJSON(false)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", inputPath, err)
	}

	dest := outPath
	if dest == "" {
		dest = defaultOutputPath(inputPath, ".json")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	rendered := string(buf)
	if pretty {
		rendered = prettyPrint(buf)
	}
	if err := os.WriteFile(dest, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	log.Printf("wrote %s (%d diagnostics)", dest, len(ef.Diagnostics))
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "exp2json <file>",
		Short: "Decode a Java Card EXP file to its JSON intermediate form",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	rootCmd.Flags().StringVarP(&outPath, "output", "o", "", "output path (default output/<ts>_<name>.json)")
	rootCmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "pretty-print the JSON output")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
