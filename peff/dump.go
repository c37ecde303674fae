// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package peff

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

func (k SectionKind) String() string {
	switch k {
	case SectionCode:
		return "EXECUTABLE_READONLY"
	case SectionUnpackedData:
		return "UNPACKED_DATA"
	case SectionPatternData:
		return "PATTERN_DATA"
	case SectionConstant:
		return "CONSTANT"
	case SectionLoader:
		return "LOADER"
	case SectionDebug:
		return "DEBUG_RESERVED"
	case SectionExecDataReserved:
		return "EXECUTABLE_READWRITE"
	case SectionExceptionReserved:
		return "EXCEPTION_RESERVED"
	case SectionTracebackReserved:
		return "TRACEBACK_RESERVED"
	default:
		return "__UNKNOWN__"
	}
}

func (s ShareKind) String() string {
	switch s {
	case ShareProcess:
		return "PROCESS"
	case ShareGlobal:
		return "GLOBAL"
	case ShareProtected:
		return "PROTECTED"
	default:
		return "__UNKNOWN__"
	}
}

// String renders a one-line summary of the container.
func (f *File) String() string {
	return fmt.Sprintf("[PEFF %s v%d: %d sections, %d exports, %d imports]",
		f.Arch, f.FormatVersion, len(f.Sections), len(f.Exports), len(f.Imports))
}

// Dump writes a human-readable summary of the container to w: header
// words, the section table, and the export and import tables.
func Dump(w io.Writer, f *File) error {
	fmt.Fprintf(w, "%s\n", f)
	fmt.Fprintf(w, "  timestamp:       %08X\n", f.DateTimeStamp)
	fmt.Fprintf(w, "  old_def_version: %08X\n", f.OldDefVersion)
	fmt.Fprintf(w, "  old_imp_version: %08X\n", f.OldImpVersion)
	fmt.Fprintf(w, "  current_version: %08X\n", f.CurrentVersion)
	printEntry := func(name string, e entryPoint) {
		if e.present() {
			fmt.Fprintf(w, "  %s: section %d offset %08X\n", name, e.section, e.offset)
		} else {
			fmt.Fprintf(w, "  %s: absent\n", name)
		}
	}
	printEntry("main", f.Main)
	printEntry("init", f.Init)
	printEntry("term", f.Term)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  #\tName\tKind\tShare\tDefaultAddr\tTotal\tUnpacked\tPacked\tReloc")
	for i, sec := range f.Sections {
		name := sec.Name
		if name == "" {
			name = "__missing__"
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%08X\t%X\t%X\t%X\t%d words\n",
			i, name, sec.Kind, sec.Share, uint32(sec.DefaultAddr),
			sec.TotalSize, sec.UnpackedSize, sec.PackedSize, len(sec.RelocProgram)/2)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	names := make([]string, 0, len(f.Exports))
	for name := range f.Exports {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		exp := f.Exports[name]
		fmt.Fprintf(w, "  export %s => [%d:%08X flags %X kind %X]\n",
			name, exp.Section, exp.Offset, exp.Flags, exp.Kind)
	}
	for i, imp := range f.Imports {
		weak := ""
		if imp.Weak() {
			weak = " (weak)"
		}
		fmt.Fprintf(w, "  import %d => %s:%s%s\n", i, imp.Library, imp.Name, weak)
	}
	if len(f.Anomalies) > 0 {
		fmt.Fprintf(w, "  anomalies:\n    %s\n", strings.Join(f.Anomalies, "\n    "))
	}
	return nil
}
