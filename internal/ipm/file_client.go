package ipm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const fileTimestampLayout = "20060102_150405"

// FileClient writes documents to a directory instead of calling the gateway and
// answers with a simulated successful submission. Used for development and for
// checking generated documents before connecting to the real gateway.
type FileClient struct {
	dir    string
	clock  clockwork.Clock
	logger *zap.Logger
}

// NewFileClient creates the output directory if needed
func NewFileClient(dir string, clock clockwork.Clock, logger *zap.Logger) (*FileClient, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, NewGatewayError(ErrCodeOutput, ModeFile, "cannot create output directory", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger = logger.Named("ipm.file")
	logger.Info("file gateway initialized", zap.String("dir", dir))

	return &FileClient{dir: dir, clock: clock, logger: logger}, nil
}

// Mode implements Client
func (c *FileClient) Mode() string {
	return ModeFile
}

// Submit writes the indented document to nfse_<identificador>_<UTC timestamp>[_TEST].xml
func (c *FileClient) Submit(ctx context.Context, xml string, testMode bool) (*SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return nil, NewGatewayError(ErrCodeInvalidDocument, ModeFile, "cannot parse document", err)
	}
	if doc.Root() == nil {
		return nil, NewGatewayError(ErrCodeInvalidDocument, ModeFile, "document has no root element", nil)
	}

	identifier := ""
	if el := doc.Root().SelectElement("identificador"); el != nil {
		identifier = strings.TrimSpace(el.Text())
	}
	if identifier == "" {
		identifier = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	suffix := ""
	if testMode {
		suffix = "_TEST"
	}
	name := fmt.Sprintf("nfse_%s_%s%s.xml", identifier, c.clock.Now().UTC().Format(fileTimestampLayout), suffix)
	path := filepath.Join(c.dir, name)

	doc.Indent(2)
	formatted, err := doc.WriteToString()
	if err != nil {
		return nil, NewGatewayError(ErrCodeOutput, ModeFile, "cannot serialize document", err)
	}
	if err := os.WriteFile(path, []byte(formatted), 0o644); err != nil {
		return nil, NewGatewayError(ErrCodeOutput, ModeFile, "cannot write "+path, err)
	}

	c.logger.Info("document saved",
		zap.String("path", path),
		zap.Bool("test_mode", testMode),
	)

	modeMessage := "Production mode simulation"
	if testMode {
		modeMessage = "Test mode: NFS-e NOT issued"
	}

	return &SubmitResult{
		Success:          true,
		Protocol:         "DUMMY-" + prefix(identifier, 8),
		InvoiceNumber:    fmt.Sprintf("NFS-%d", 1000+rand.IntN(9000)),
		VerificationCode: strings.ToUpper(prefix(strings.ReplaceAll(uuid.NewString(), "-", ""), 8)),
		PdfURL:           "file://" + path,
		Messages: []string{
			"XML successfully saved to file (DUMMY MODE)",
			"File location: " + path,
			modeMessage,
		},
		RawResponse: "<!-- File-based dummy response -->\n" + formatted,
	}, nil
}

// Query is not available without a gateway
func (c *FileClient) Query(ctx context.Context, protocol string) (*QueryResult, error) {
	c.logger.Warn("query called on file gateway", zap.String("protocol", protocol))
	return &QueryResult{Found: false, Status: "Dummy implementation - query not available"}, nil
}

// Cancel is not available without a gateway
func (c *FileClient) Cancel(ctx context.Context, invoiceNumber, reason string) (*CancelResult, error) {
	c.logger.Warn("cancel called on file gateway",
		zap.String("invoice_number", invoiceNumber),
		zap.String("reason", reason),
	)
	return &CancelResult{
		Success:  false,
		Messages: []string{"Dummy implementation - cancellation not available"},
	}, nil
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
