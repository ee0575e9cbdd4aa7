package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	v1 "github.com/jordanharrington/visualgate/api/v1"
	"github.com/jordanharrington/visualgate/internal/json"
	flag "github.com/spf13/pflag"
)

// client submits one text-to-video job to a running gateway and polls it to a
// terminal state. With --region set every call is SigV4-signed for an
// IAM-protected API Gateway deployment.
type client struct {
	base   string
	region string
	creds  aws.CredentialsProvider
	signer *v4.Signer
	http   *http.Client
}

func main() {
	apiURL := flag.String("api", "http://localhost:5000", "gateway base URL")
	region := flag.String("region", "", "AWS region; signs requests for execute-api when set")
	prompt := flag.String("prompt", "", "text prompt (required)")
	ratio := flag.String("aspect-ratio", "16:9", "video aspect ratio")
	interval := flag.Duration("interval", 5*time.Second, "poll interval")
	timeout := flag.Duration("timeout", 10*time.Minute, "give up after this long")

	flag.Parse()

	if *prompt == "" {
		_, _ = fmt.Fprintln(os.Stderr, "missing required flag: --prompt")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := &client{
		base:   strings.TrimRight(*apiURL, "/"),
		region: *region,
		http:   &http.Client{Timeout: 2 * time.Minute},
	}
	if c.region != "" {
		cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(c.region))
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to load AWS config: %v\n", err)
			os.Exit(1)
		}
		c.creds = cfg.Credentials
		c.signer = v4.NewSigner()
	}

	var submitted v1.TaskResponse
	if err := c.post(ctx, "/api/text-to-video", v1.GenerateRequest{Prompt: *prompt, AspectRatio: *ratio}, &submitted); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "submit failed: %v\n", err)
		os.Exit(1)
	}
	taskID := submitted.Data.TaskID
	fmt.Printf("submitted task %s\n", taskID)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		var status v1.TaskResponse
		if err := c.post(ctx, "/api/check-status", v1.PollRequest{TaskID: taskID}, &status); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "poll failed: %v\n", err)
			os.Exit(1)
		}
		switch status.Data.Status {
		case "done":
			fmt.Printf("video ready: %s\n", status.Data.VideoURL)
			return
		case "pending", "processing":
			fmt.Printf("status %s (%s)\n", status.Data.Status, status.Data.StatusMessage)
		default:
			_, _ = fmt.Fprintf(os.Stderr, "task ended in %s\n", status.Data.Status)
			os.Exit(1)
		}

		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintf(os.Stderr, "gave up waiting: %v\n", ctx.Err())
			os.Exit(1)
		case <-ticker.C:
		}
	}
}

func (c *client) post(ctx context.Context, path string, in, out any) error {
	bs, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(bs))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if c.signer != nil {
		creds, err := c.creds.Retrieve(ctx)
		if err != nil {
			return fmt.Errorf("retrieve creds: %w", err)
		}
		sum := sha256.Sum256(bs)
		if err := c.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), "execute-api", c.region, time.Now()); err != nil {
			return fmt.Errorf("sign request: %w", err)
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(res.Body)

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	var env v1.TaskResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%s: %s", res.Status, string(body))
	}
	if !env.Success || env.Data == nil {
		return fmt.Errorf("%s: %s", res.Status, env.Error)
	}
	return json.Unmarshal(body, out)
}
