package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/mgmeyers/pdfsign/signature"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const DefaultURL = "http://localhost:5000/api"

type File struct {
	Name    string
	Content []byte
}

type UploadResult map[string]interface{}

// Client talks to the PDF-mutation backend. Requests are never retried: the
// backend treats every signing request as a new mutation.
type Client struct {
	client *http.Client

	url     string
	timeout time.Duration

	logger logrus.FieldLogger
}

func New(url string, options ...Option) (*Client, error) {
	if url == "" {
		url = DefaultURL
	}

	c := &Client{
		client: http.DefaultClient,

		url: strings.TrimRight(url, "/"),

		logger: logrus.StandardLogger(),
	}

	for _, option := range options {
		option(c)
	}

	return c, nil
}

// UploadPDF registers a document with the backend.
func (c *Client) UploadPDF(ctx context.Context, file File) (UploadResult, error) {
	data, err := c.post(ctx, "/upload-pdf", func(w *multipart.Writer) error {
		return writeFile(w, file)
	})

	if err != nil {
		return nil, err
	}

	var result UploadResult

	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "decode upload response")
	}

	return result, nil
}

// ApplySignatures submits all records at once and returns the signed PDF.
func (c *Client) ApplySignatures(ctx context.Context, file File, records []signature.Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, signature.ErrEmptyBatch
	}

	signatures, err := signature.Encode(records)
	if err != nil {
		return nil, err
	}

	data, err := c.post(ctx, "/apply-signatures", func(w *multipart.Writer) error {
		if err := writeFile(w, file); err != nil {
			return err
		}

		return w.WriteField("signatures", string(signatures))
	})

	if err != nil {
		return nil, err
	}

	return checkPDF(data)
}

// SignPDF submits a single record as individual form fields.
func (c *Client) SignPDF(ctx context.Context, file File, record signature.Record) ([]byte, error) {
	data, err := c.post(ctx, "/sign-pdf", func(w *multipart.Writer) error {
		if err := writeFile(w, file); err != nil {
			return err
		}

		fields := [][2]string{
			{"signatureType", string(record.Type)},
			{"signatureData", record.Data},
			{"x", strconv.Itoa(record.X)},
			{"y", strconv.Itoa(record.Y)},
			{"pageNumber", strconv.Itoa(record.PageNumber)},
		}

		if record.Type == signature.Text {
			fields = append(fields,
				[2]string{"font", record.Font},
				[2]string{"fontSize", strconv.FormatFloat(record.FontSize, 'f', -1, 64)},
				[2]string{"color", record.Color},
			)
		}

		for _, f := range fields {
			if err := w.WriteField(f[0], f[1]); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return checkPDF(data)
}

func (c *Client) post(ctx context.Context, endpoint string, build func(w *multipart.Writer) error) ([]byte, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	if err := build(w); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+endpoint, &b)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", w.FormDataContentType())

	log := c.logger.WithField("endpoint", endpoint)
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		log.WithError(err).Error("backend request failed")
		return nil, errors.Wrapf(err, "post %s", endpoint)
	}

	defer resp.Body.Close()

	log = log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := convertError(resp)
		log.WithError(err).Warn("backend rejected request")
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s response", endpoint)
	}

	log.WithField("bytes", len(data)).Debug("backend request done")

	return data, nil
}

func writeFile(w *multipart.Writer, file File) error {
	name := file.Name

	if name == "" {
		name = "document.pdf"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="pdfFile"; filename="`+escapeQuotes(name)+`"`)
	h.Set("Content-Type", "application/pdf")

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}

	_, err = part.Write(file.Content)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// pdfMagicWindow is how far into the payload the %PDF- header may start.
const pdfMagicWindow = 1024

func checkPDF(data []byte) ([]byte, error) {
	head := data

	if len(head) > pdfMagicWindow {
		head = head[:pdfMagicWindow]
	}

	if !bytes.Contains(head, []byte("%PDF-")) {
		return nil, ErrInvalidPayload
	}

	return data, nil
}
