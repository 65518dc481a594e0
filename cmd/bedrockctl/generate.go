// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leseb/bedrock-gw/pkg/app"
	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

type generateCommander struct {
	model       string
	maxTokens   int
	temperature float64
	topP        float64
	stream      bool
}

func newGenerateCmd(root *rootCommander) *cobra.Command {
	cmder := &generateCommander{}

	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate text with a Bedrock model",
		Long: `Generate text from a prompt. Unset sampling flags use the model family's defaults.

Example:
  bedrockctl generate "Explain goroutines in one paragraph"
  bedrockctl generate "Tell me a story" --model anthropic.claude-3-haiku-20240307-v1:0 --stream`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.run(cmd, func(a *app.App) error {
				return cmder.run(cmd, a, args[0])
			})
		},
	}

	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model id (default from config)")
	cmd.Flags().IntVar(&cmder.maxTokens, "max-tokens", 0, "Maximum tokens to generate")
	cmd.Flags().Float64Var(&cmder.temperature, "temperature", 0, "Sampling temperature")
	cmd.Flags().Float64Var(&cmder.topP, "top-p", 0, "Nucleus sampling probability")
	cmd.Flags().BoolVarP(&cmder.stream, "stream", "s", false, "Print text as it is generated")

	return cmd
}

func (c *generateCommander) request(cmd *cobra.Command, prompt string) schema.TextGenerationRequest {
	req := schema.TextGenerationRequest{Prompt: prompt, ModelID: c.model}
	if cmd.Flags().Changed("max-tokens") {
		req.MaxTokens = &c.maxTokens
	}
	if cmd.Flags().Changed("temperature") {
		req.Temperature = &c.temperature
	}
	if cmd.Flags().Changed("top-p") {
		req.TopP = &c.topP
	}
	return req
}

func (c *generateCommander) run(cmd *cobra.Command, a *app.App, prompt string) error {
	req := c.request(cmd, prompt)
	out := cmd.OutOrStdout()

	if !c.stream {
		resp, err := a.Text.Generate(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, resp.Text)
		return nil
	}

	reader, err := a.Text.GenerateStream(cmd.Context(), req)
	if err != nil {
		return err
	}
	for chunk, err := range reader.All(cmd.Context()) {
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		fmt.Fprint(out, chunk.Chunk)
	}
	fmt.Fprintln(out)
	return nil
}

type imageCommander struct {
	model    string
	output   string
	negative string
	width    int
	height   int
	seed     int64
}

func newImageCmd(root *rootCommander) *cobra.Command {
	cmder := &imageCommander{}

	cmd := &cobra.Command{
		Use:   "image <prompt>",
		Short: "Generate an image and write it as PNG",
		Long: `Generate an image from a prompt and write the first result to a file.

Example:
  bedrockctl image "a lighthouse at dawn" -o lighthouse.png
  bedrockctl image "a red bicycle" --model stability.stable-diffusion-xl-v1 --width 512 --height 512 -o bike.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.run(cmd, func(a *app.App) error {
				return cmder.run(cmd, a, args[0])
			})
		},
	}

	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model id (default from config)")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "image.png", "Output file")
	cmd.Flags().StringVar(&cmder.negative, "negative", "", "Negative prompt")
	cmd.Flags().IntVar(&cmder.width, "width", 0, "Image width in pixels")
	cmd.Flags().IntVar(&cmder.height, "height", 0, "Image height in pixels")
	cmd.Flags().Int64Var(&cmder.seed, "seed", 0, "Random seed")

	return cmd
}

func (c *imageCommander) run(cmd *cobra.Command, a *app.App, prompt string) error {
	req := schema.ImageGenerationRequest{Prompt: prompt, NegativePrompt: c.negative, ModelID: c.model}
	if cmd.Flags().Changed("width") {
		req.Width = &c.width
	}
	if cmd.Flags().Changed("height") {
		req.Height = &c.height
	}
	if cmd.Flags().Changed("seed") {
		req.Seed = &c.seed
	}

	resp, err := a.Images.Generate(cmd.Context(), req)
	if err != nil {
		return err
	}
	content, err := base64.StdEncoding.DecodeString(resp.First())
	if err != nil {
		return errdefs.Wrap(errdefs.KindResponse, err, "decode image")
	}
	if err := os.WriteFile(c.output, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", c.output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes, %s)\n", c.output, len(content), resp.Model)
	return nil
}

type embedCommander struct {
	model     string
	inputType string
}

func newEmbedCmd(root *rootCommander) *cobra.Command {
	cmder := &embedCommander{}

	cmd := &cobra.Command{
		Use:   "embed <text>",
		Short: "Print the embedding of a text as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.run(cmd, func(a *app.App) error {
				resp, err := a.Embedder.Embed(cmd.Context(), schema.EmbeddingRequest{
					Text:      args[0],
					ModelID:   cmder.model,
					InputType: cmder.inputType,
				})
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				return enc.Encode(resp)
			})
		},
	}

	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Embedding model id (default from config)")
	cmd.Flags().StringVar(&cmder.inputType, "input-type", "", "search_document or search_query, for models that distinguish them")

	return cmd
}
