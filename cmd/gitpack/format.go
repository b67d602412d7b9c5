package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"gitpack/internal/bundle"
	"gitpack/internal/changes"
	"gitpack/internal/refs"
	"gitpack/internal/workflow"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatHuman OutputFormat = "human"
)

var (
	bold     = color.New(color.Bold).SprintFunc()
	warnText = color.New(color.FgYellow).SprintFunc()
)

func okMark() string   { return color.GreenString("✓") }
func failMark() string { return color.RedString("✗") }

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatYAML formats the response as YAML. It goes through the JSON
// encoding so that custom marshalers and key order are kept.
func formatYAML(resp interface{}) (string, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	blockStyle(&doc)
	var out strings.Builder
	enc := yaml.NewEncoder(&out)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(out.String(), "\n"), nil
}

// blockStyle drops the flow and quoting styles JSON input comes with.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *workflow.ExportResult:
		return formatExportHuman(v), nil
	case *workflow.BundleResult:
		return formatBundleHuman(v), nil
	case *bundle.Match:
		return fmt.Sprintf("Bundles for %s:\n  %s", v.Version, strings.Join(v.Tags, "\n  ")), nil
	case *workflow.GetBundleResult:
		return fmt.Sprintf("%s Bundle %s written to %s", okMark(), v.Tag, v.Path), nil
	case *workflow.BuildResult:
		return formatBuildHuman(v), nil
	case *workflow.SaveResult:
		return formatSaveHuman(v), nil
	case *refs.Ancestry:
		return formatAncestryHuman(v), nil
	case *workflow.TouchedResult:
		return formatTouchedHuman(v), nil
	case *changes.MergePreview:
		return formatPreviewHuman(v), nil
	case *workflow.SandboxInfo:
		return formatInfoHuman(v), nil
	case *workflow.DeleteResult:
		return fmt.Sprintf("%s Deleted %s (%d recorded runs forgotten)", okMark(), v.Root, v.Runs), nil
	case *ArchiveResponseCLI:
		return formatArchiveHuman(v), nil
	case *HistoryResponseCLI:
		return formatHistoryHuman(v), nil
	case *DoctorResponseCLI:
		return formatDoctorHuman(v), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func header(b *strings.Builder, title string) {
	b.WriteString(bold(title) + "\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
}

func mark(ok bool) string {
	if ok {
		return okMark()
	}
	return failMark()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("%s (%d):\n", title, len(items)))
	for _, item := range items {
		b.WriteString("  " + item + "\n")
	}
}

func writeWarning(b *strings.Builder, warning string) {
	if warning != "" {
		b.WriteString(warnText("! "+warning) + "\n")
	}
}

func formatExportHuman(r *workflow.ExportResult) string {
	var b strings.Builder
	header(&b, "Sandbox "+r.Sandbox)
	action := "reused"
	if r.Created {
		action = "created"
	}
	b.WriteString(fmt.Sprintf("Root:     %s (%s)\n", r.Root, action))
	b.WriteString(fmt.Sprintf("Ancestor: %s\n", r.Ancestor))
	if r.Base != "" {
		b.WriteString(fmt.Sprintf("Base:     %s\n", r.Base))
	}
	b.WriteString(fmt.Sprintf("Commit:   %s\n\n", r.Commit))
	writeList(&b, "Copied", r.Copied)
	writeList(&b, "Ignored", r.Ignored)
	writeList(&b, "Excluded", r.Excluded)
	writeList(&b, "Unresolved symbols allowed", r.IgnoredSymbols)
	if len(r.Copied)+len(r.Ignored) == 0 {
		b.WriteString("Nothing to synchronize.\n")
	}
	writeWarning(&b, r.Warning)
	return strings.TrimRight(b.String(), "\n")
}

func formatBundleHuman(r *workflow.BundleResult) string {
	var b strings.Builder
	b.WriteString(formatExportHuman(r.Export) + "\n\n")
	header(&b, "Bundle "+r.Bundle)
	for _, p := range r.Projects {
		commit := p.Commit
		if len(commit) > 7 {
			commit = commit[:7]
		}
		b.WriteString(fmt.Sprintf("%-12s %-16s %-8s %4d files -> %s\n", p.Name, p.Version, commit, p.Copied, p.Destination))
	}
	writeList(&b, "Unresolved symbols allowed", r.IgnoredSymbols)
	return strings.TrimRight(b.String(), "\n")
}

func formatBuildHuman(r *workflow.BuildResult) string {
	var b strings.Builder
	header(&b, fmt.Sprintf("Build %s (%s)", r.Report.Sandbox, r.Report.Policy))
	for _, e := range r.Report.Entries() {
		b.WriteString(fmt.Sprintf("%s %-20s %s\n", mark(e.OK), e.Target, e.Output))
	}
	b.WriteString(fmt.Sprintf("\n%d succeeded, %d failed in %s\n",
		len(r.Report.Succeeded()), len(r.Report.Failed()),
		r.Report.FinishedAt.Sub(r.Report.StartedAt).Round(time.Second)))
	if r.ReportFile != "" {
		b.WriteString("Report: " + r.ReportFile + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSaveHuman(r *workflow.SaveResult) string {
	var b strings.Builder
	header(&b, "Branch "+r.Branch)
	b.WriteString(fmt.Sprintf("Started at: %s\n\n", r.StartRef))
	writeList(&b, "Copied", r.Copied)
	writeList(&b, "Removed", r.Removed)
	switch {
	case r.Pushed:
		b.WriteString(okMark() + " Committed and pushed\n")
	case r.Committed:
		b.WriteString(okMark() + " Committed\n")
	default:
		b.WriteString("Not committed: the branch is left checked out for review.\n")
	}
	writeWarning(&b, r.Warning)
	return strings.TrimRight(b.String(), "\n")
}

func formatAncestryHuman(a *refs.Ancestry) string {
	var b strings.Builder
	header(&b, "Official ancestors of "+a.Ref)
	for _, t := range a.Official {
		line := "  " + t.Name
		if t.IsMainRelease() {
			line += " (main release)"
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(fmt.Sprintf("\nLatest: %s\n", a.Latest().Name))
	return strings.TrimRight(b.String(), "\n")
}

func formatTouchedHuman(r *workflow.TouchedResult) string {
	var b strings.Builder
	header(&b, fmt.Sprintf("Touched in %s since %s", r.Ref, r.Since))
	if r.Changes.IsEmpty() {
		b.WriteString("No changes.\n")
	}
	for _, s := range r.Changes.Statuses() {
		for _, e := range r.Changes.Entries(s) {
			b.WriteString(fmt.Sprintf("  %s  %s\n", s, e))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPreviewHuman(p *changes.MergePreview) string {
	var b strings.Builder
	header(&b, "Merge preview from "+p.Ancestor)
	if p.Count() == 0 {
		b.WriteString(okMark() + " No potential conflict\n")
		return strings.TrimRight(b.String(), "\n")
	}
	for _, key := range p.Keys() {
		b.WriteString(fmt.Sprintf("%s %s (%d):\n", failMark(), key, len(p.Conflicts[key])))
		for _, c := range p.Conflicts[key] {
			if c.Contrib == c.Target {
				b.WriteString("    " + c.Contrib.String() + "\n")
			} else {
				b.WriteString(fmt.Sprintf("    %s | %s\n", c.Contrib, c.Target))
			}
		}
	}
	b.WriteString(fmt.Sprintf("\n%d potential conflicts\n", p.Count()))
	return strings.TrimRight(b.String(), "\n")
}

func formatInfoHuman(i *workflow.SandboxInfo) string {
	var b strings.Builder
	header(&b, "Sandbox "+i.Name)
	b.WriteString(fmt.Sprintf("Root:    %s\n", i.Root))
	b.WriteString(fmt.Sprintf("Release: %s\n", i.Options.Release))
	branch := i.Options.Branch
	if i.Options.BranchVersion != "" {
		branch += "." + i.Options.BranchVersion
	}
	kind := "main"
	if i.Options.Incremental {
		kind = "incremental"
	}
	b.WriteString(fmt.Sprintf("Branch:  %s (%s)\n\n", branch, kind))
	writeList(&b, "Build scripts", i.Scripts)
	writeList(&b, "Ignored for compilation", i.Ignored)
	if len(i.Origin) > 0 {
		b.WriteString(fmt.Sprintf("Synchronizations (%d):\n", len(i.Origin)))
		for _, o := range i.Origin {
			b.WriteString(fmt.Sprintf("  %s  %s@%s over %s: %d copied, %d ignored\n",
				o.SyncedAt.Format(time.DateTime), o.Ref, shortCommit(o.Commit), o.Ancestor, o.Copied, o.Ignored))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatArchiveHuman(r *ArchiveResponseCLI) string {
	verb := "Archived"
	if r.Extracted {
		verb = "Extracted"
	}
	return fmt.Sprintf("%s %s %d files (%s <-> %s)", okMark(), verb, len(r.Files), r.Sandbox, r.Archive)
}

func formatHistoryHuman(r *HistoryResponseCLI) string {
	var b strings.Builder
	header(&b, "Build history")
	if len(r.Runs) == 0 {
		b.WriteString("No recorded runs.\n")
	}
	for _, run := range r.Runs {
		failed := 0
		for _, t := range run.Targets {
			if !t.OK {
				failed++
			}
		}
		b.WriteString(fmt.Sprintf("%s %s  %-30s %d targets, %d failed (%s)\n",
			mark(run.OK), run.StartedAt.Format(time.DateTime), run.Sandbox,
			len(run.Targets), failed, run.Policy))
		if run.Error != "" {
			b.WriteString("    " + run.Error + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDoctorHuman(r *DoctorResponseCLI) string {
	var b strings.Builder
	header(&b, "gitpack "+r.Version)
	b.WriteString(fmt.Sprintf("Sandbox home: %s\n", r.Home))
	if r.Clone != nil {
		state := "clean"
		if r.Clone.Dirty {
			state = "dirty"
		}
		b.WriteString(fmt.Sprintf("Checked out:  %s at %s (%s)\n", r.Clone.CheckedOut(), shortCommit(r.Clone.HeadCommit), state))
	}
	b.WriteString("\n")
	for _, s := range r.Backends {
		state := "available"
		switch {
		case !s.Available:
			state = "not found"
		case s.Version != "":
			state = fmt.Sprintf("%s (%s)", s.Version, s.Path)
		case s.Path != "":
			state = s.Path
		}
		b.WriteString(fmt.Sprintf("%s %-10s %s\n", mark(s.Available), s.ID, state))
	}
	return strings.TrimRight(b.String(), "\n")
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
