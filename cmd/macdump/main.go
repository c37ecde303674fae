// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// macdump is the batch frontend over the preservation core: it dumps PEFF
// containers, disassembles their code sections, and decompresses resource
// buffers with the System decoders or an emulated 'ncmp'.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/saferwall/macres/dcmp"
	"github.com/saferwall/macres/peff"
	"github.com/saferwall/macres/ppc32"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	disasm     bool
	skipNative bool
	strictMem  bool
	retry      bool
	outPath    string
)

func isDirectory(path string) bool {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fileInfo.IsDir()
}

func dumpPEFF(filename string) {
	log.Printf("Processing filename %s", filename)

	f, err := peff.New(filename)
	if err != nil {
		log.Printf("Error while parsing file: %s, reason: %s", filename, err)
		return
	}
	defer f.Close()

	if err := peff.Dump(os.Stdout, f); err != nil {
		log.Printf("Error while dumping file: %s, reason: %s", filename, err)
		return
	}

	if disasm && f.Arch == peff.ArchPowerPC {
		for i, sec := range f.Sections {
			if sec.Kind != peff.SectionCode || len(sec.Data) == 0 {
				continue
			}
			fmt.Printf("  [section %d] code\n", i)
			fmt.Print(ppc32.Disassemble(sec.Data, uint32(sec.DefaultAddr), nil))
		}
	}
}

func peffCmdRun(cmd *cobra.Command, args []string) {
	filePath := args[0]

	if !isDirectory(filePath) {
		dumpPEFF(filePath)
		return
	}

	// Walk recursively through all files of a directory argument.
	fileList := []string{}
	filepath.Walk(filePath, func(path string, f os.FileInfo, err error) error {
		if !isDirectory(path) {
			fileList = append(fileList, path)
		}
		return nil
	})
	for _, file := range fileList {
		dumpPEFF(file)
	}
}

func decompressCmdRun(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Printf("Error while opening file: %s, reason: %s", args[0], err)
		return
	}

	var flags dcmp.Flags
	if verbose {
		flags |= dcmp.Verbose
	}
	if skipNative {
		flags |= dcmp.SkipNative
	}
	if strictMem {
		flags |= dcmp.StrictMemory
	}
	if retry {
		flags |= dcmp.Retry
	}

	out, err := dcmp.Decompress(data, flags, nil, nil)
	if err != nil {
		log.Printf("Error while decompressing: %s, reason: %s", args[0], err)
		return
	}

	dest := outPath
	if dest == "" {
		dest = args[0] + ".out"
	}
	if err := os.WriteFile(dest, out, 0o644); err != nil {
		log.Printf("Error while writing output: %s, reason: %s", dest, err)
		return
	}
	log.Printf("Wrote %d bytes to %s", len(out), dest)
}

func main() {

	var rootCmd = &cobra.Command{
		Use:   "macdump",
		Short: "A classic Mac OS resource preservation toolkit",
		Long: "Parses PEFF containers and decompresses classic Mac OS resources " +
			"with the original System decompressor semantics",
		Run: func(cmd *cobra.Command, args []string) {
		},
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Long:  "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print("You are using version 0.0.1")
		},
	}

	var peffCmd = &cobra.Command{
		Use:   "peff",
		Short: "Dump a PEFF container",
		Long:  "Dumps the header, section table, exports and imports of a PEFF container",
		Args:  cobra.MinimumNArgs(1),
		Run:   peffCmdRun,
	}

	var decompressCmd = &cobra.Command{
		Use:   "decompress",
		Short: "Decompress a resource buffer",
		Long:  "Decompresses a compressed resource buffer through the System 0/1/2/3 decoders",
		Args:  cobra.MinimumNArgs(1),
		Run:   decompressCmdRun,
	}

	// Init root command.
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(peffCmd)
	rootCmd.AddCommand(decompressCmd)

	// Init flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	peffCmd.Flags().BoolVarP(&disasm, "disasm", "", false, "Disassemble code sections")
	decompressCmd.Flags().BoolVarP(&skipNative, "skip-native", "", false, "Force emulated decompression")
	decompressCmd.Flags().BoolVarP(&strictMem, "strict-memory", "", false, "Refuse unmapped guest memory accesses")
	decompressCmd.Flags().BoolVarP(&retry, "retry", "", false, "Try the next decoder source on failure")
	decompressCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file path")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

}
