package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tensorbind/pure-tf/internal/tagset"
	"github.com/tensorbind/pure-tf/savedmodel"
	"github.com/tensorbind/pure-tf/tf"
)

func newShowCommand() *cobra.Command {
	var (
		dir     string
		tagsCSV string
		all     bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the MetaGraphs and signatures of a SavedModel directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tagsCSV != "" && all {
				return fmt.Errorf("--tag-set and --all are mutually exclusive")
			}

			graphs, err := savedmodel.Inspect(dir)
			if err != nil {
				return err
			}
			if len(graphs) == 0 {
				return fmt.Errorf("no meta graphs in %s", dir)
			}

			selected := graphs
			if tagsCSV != "" {
				wanted := tagset.Parse(tagsCSV)
				selected = nil
				for _, graph := range graphs {
					if tagset.Equal(graph.Tags, wanted) {
						selected = append(selected, graph)
						break
					}
				}
				if len(selected) == 0 {
					available := make([]string, 0, len(graphs))
					for _, graph := range graphs {
						available = append(available, tagset.Join(graph.Tags))
					}
					return fmt.Errorf("no meta graph with tag set {%s}; descriptor has {%s}", tagset.Join(wanted), strings.Join(available, "} {"))
				}
			} else if !all {
				selected = graphs[:1]
			}

			for i, graph := range selected {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				showMetaGraph(cmd.OutOrStdout(), graph)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "SavedModel directory to inspect")
	cmd.Flags().StringVar(&tagsCSV, "tag-set", "", "comma-separated tag set selecting one meta graph")
	cmd.Flags().BoolVar(&all, "all", false, "show every meta graph instead of the first")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func showMetaGraph(w io.Writer, graph savedmodel.MetaGraph) {
	fmt.Fprintf(w, "MetaGraph [%s]\n", tagset.Join(graph.Tags))
	if graph.TensorFlowVersion != "" {
		fmt.Fprintf(w, "  TensorFlow %s (%s)\n", graph.TensorFlowVersion, graph.GitVersion)
	}
	fmt.Fprintln(w)

	names := make([]string, 0, len(graph.Signatures))
	for name := range graph.Signatures {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sig := graph.Signatures[name]
		fmt.Fprintf(w, "  Signature %q", name)
		if sig.MethodName != "" {
			fmt.Fprintf(w, " (%s)", sig.MethodName)
		}
		fmt.Fprintln(w)

		renderTensorTable(w, "Inputs", sig.Inputs)
		renderTensorTable(w, "Outputs", sig.Outputs)
	}
}

func renderTensorTable(w io.Writer, header string, tensors map[string]savedmodel.TensorInfo) {
	fmt.Fprintln(w, "   ", header)
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetHeader([]string{"", "key", "node", "dtype", "shape"})

	keys := make([]string, 0, len(tensors))
	for key := range tensors {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		info := tensors[key]
		rows = append(rows, []string{"", key, info.Name, info.DType.String(), formatShape(info.Shape)})
	}
	table.AppendBulk(rows)
	table.Render()
	fmt.Fprintln(w)
}

func formatShape(shape tf.Shape) string {
	if shape == nil {
		return "unknown rank"
	}
	dims := make([]string, len(shape))
	for i, dim := range shape {
		if dim < 0 {
			dims[i] = "?"
			continue
		}
		dims[i] = strconv.FormatInt(dim, 10)
	}
	return "[" + strings.Join(dims, ",") + "]"
}
