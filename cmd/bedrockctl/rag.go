// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leseb/bedrock-gw/pkg/app"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

const previewLen = 120

type storeCommander struct {
	model     string
	namespace string
	metadata  map[string]string
}

func newStoreCmd(root *rootCommander) *cobra.Command {
	cmder := &storeCommander{}

	cmd := &cobra.Command{
		Use:   "store <text>",
		Short: "Embed a text and store it in the vector store",
		Long: `Embed a text and store it with optional metadata. Prints the record id.

Example:
  bedrockctl store "Rust is a systems programming language" --meta topic=langs --namespace docs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.run(cmd, func(a *app.App) error {
				meta := make(map[string]any, len(cmder.metadata))
				for k, v := range cmder.metadata {
					meta[k] = v
				}
				rec, err := a.RAG.EmbedAndStore(cmd.Context(), args[0], cmder.model, meta, cmder.namespace)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Embedding model id (default from config)")
	cmd.Flags().StringVarP(&cmder.namespace, "namespace", "n", "", "Namespace (default \"default\")")
	cmd.Flags().StringToStringVar(&cmder.metadata, "meta", nil, "Metadata as key=value pairs")

	return cmd
}

type searchCommander struct {
	model     string
	namespace string
	topK      int
	where     map[string]string
}

func newSearchCmd(root *rootCommander) *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search over stored texts",
		Long: `Embed a query and print the closest stored texts, best match first.

Example:
  bedrockctl search "memory safety" --top 3 --where topic=langs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.run(cmd, func(a *app.App) error {
				filter := schema.MatchAll(toAny(cmder.where))
				results, err := a.RAG.SemanticSearch(cmd.Context(), args[0], cmder.topK, cmder.model, cmder.namespace, filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintln(out, "No results found.")
					return nil
				}
				for i, r := range results {
					fmt.Fprintf(out, "%d. [%.4f] %s\n   %s\n", i+1, r.Score, r.ID, preview(r.Content))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Embedding model id (default from config)")
	cmd.Flags().StringVarP(&cmder.namespace, "namespace", "n", "", "Namespace (default \"default\")")
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 5, "Number of results to return")
	cmd.Flags().StringToStringVar(&cmder.where, "where", nil, "Metadata equality filter as key=value pairs")

	return cmd
}

type askCommander struct {
	genModel     string
	embedModel   string
	namespace    string
	contextLimit int
	maxTokens    int
	showSources  bool
}

func newAskCmd(root *rootCommander) *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from stored context",
		Long: `Retrieve the closest stored texts and ask a model to answer from them.

Example:
  bedrockctl ask "What is Rust?" --context-limit 3 --sources`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.run(cmd, func(a *app.App) error {
				return cmder.run(cmd, a, args[0])
			})
		},
	}

	cmd.Flags().StringVarP(&cmder.genModel, "model", "m", "", "Generation model id (default from config)")
	cmd.Flags().StringVar(&cmder.embedModel, "embed-model", "", "Embedding model id (default from config)")
	cmd.Flags().StringVarP(&cmder.namespace, "namespace", "n", "", "Namespace (default \"default\")")
	cmd.Flags().IntVar(&cmder.contextLimit, "context-limit", 0, "Number of stored texts to retrieve (default from config)")
	cmd.Flags().IntVar(&cmder.maxTokens, "max-tokens", 0, "Maximum tokens to generate")
	cmd.Flags().BoolVar(&cmder.showSources, "sources", false, "Print the retrieved context after the answer")

	return cmd
}

func (c *askCommander) run(cmd *cobra.Command, a *app.App, question string) error {
	req := schema.RAGRequest{
		Query:        question,
		ContextLimit: c.contextLimit,
		GenModel:     c.genModel,
		EmbedModel:   c.embedModel,
		Namespace:    c.namespace,
	}
	if cmd.Flags().Changed("max-tokens") {
		req.MaxTokens = &c.maxTokens
	}

	resp, err := a.RAG.GenerateWithContext(cmd.Context(), req)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, resp.Text)

	if c.showSources {
		fmt.Fprintf(out, "\nSources (%d):\n", resp.Context.Len())
		for i, content := range resp.Context.Contents {
			fmt.Fprintf(out, "%d. [%.4f] %s\n   %s\n", i+1, resp.Context.Scores[i], resp.Context.SourceIDs[i], preview(content))
		}
	}
	return nil
}

type ingestCommander struct {
	model     string
	namespace string
	chunkSize int
	overlap   int
	metadata  map[string]string
}

func newIngestCmd(root *rootCommander) *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Chunk, embed and store a document",
		Long: `Extract the text of a document, split it into overlapping chunks and store
every chunk. Text, Markdown, HTML, CSV, JSON, JSON Lines and PDF are supported.

Example:
  bedrockctl ingest handbook.pdf --namespace docs --chunk-size 600 --overlap 100`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return root.run(cmd, func(a *app.App) error {
				meta := make(map[string]any, len(cmder.metadata))
				maps.Copy(meta, toAny(cmder.metadata))
				resp, err := a.RAG.IngestDocument(cmd.Context(), schema.IngestRequest{
					Name:       filepath.Base(args[0]),
					Content:    content,
					Namespace:  cmder.namespace,
					Metadata:   meta,
					ChunkSize:  cmder.chunkSize,
					Overlap:    cmder.overlap,
					EmbedModel: cmder.model,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s: %d chunks into namespace %q\n", resp.Source, resp.Chunks, resp.Namespace)
				if resp.ArtifactID != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Artifact: %s\n", resp.ArtifactID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Embedding model id (default from config)")
	cmd.Flags().StringVarP(&cmder.namespace, "namespace", "n", "", "Namespace (default \"default\")")
	cmd.Flags().IntVar(&cmder.chunkSize, "chunk-size", 0, "Chunk size in characters (default from config)")
	cmd.Flags().IntVar(&cmder.overlap, "overlap", 0, "Chunk overlap in characters (default from config)")
	cmd.Flags().StringToStringVar(&cmder.metadata, "meta", nil, "Metadata added to every chunk as key=value pairs")

	return cmd
}

func toAny(m map[string]string) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// preview flattens s to one line of at most previewLen runes.
func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen-3]) + "..."
}
