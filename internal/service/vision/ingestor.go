package vision

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"gateway/internal/apperror"
)

// Encoding is how the image bytes arrived in the request.
type Encoding string

const (
	EncodingMultipart Encoding = "multipart"
	EncodingDataURL   Encoding = "data-url"
	EncodingRaw       Encoding = "raw"
)

// MsgNoImage is the client-facing message for every ingestion failure.
const MsgNoImage = "no decodable image"

// multipartFields are checked in order; the first present one wins.
var multipartFields = []string{"image", "file"}

// Payload is the image bytes selected from an inbound request.
type Payload struct {
	Data     []byte
	Encoding Encoding
}

type framePayload struct {
	Frame string `json:"frame"`
	Image string `json:"image"` // starsza wersja klienta JS
}

// Ingestor turns heterogeneous request bodies into one decoded image.
type Ingestor struct {
	maxBytes int64
}

func NewIngestor(maxBytes int64) *Ingestor {
	return &Ingestor{maxBytes: maxBytes}
}

// ReadPayload extracts the raw image bytes without decoding them.
func (i *Ingestor) ReadPayload(w http.ResponseWriter, r *http.Request) (*Payload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, i.maxBytes)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, apperror.InputError(MsgNoImage, err)
	}

	switch {
	case mediaType == "multipart/form-data":
		return i.readMultipart(r)
	case mediaType == "application/json":
		return readDataURL(r.Body)
	case strings.HasPrefix(mediaType, "image/"):
		data, err := io.ReadAll(r.Body)
		if err != nil || len(data) == 0 {
			return nil, apperror.InputError(MsgNoImage, err)
		}
		return &Payload{Data: data, Encoding: EncodingRaw}, nil
	default:
		return nil, apperror.InputError(MsgNoImage, errors.New("unsupported content type "+mediaType))
	}
}

func (i *Ingestor) readMultipart(r *http.Request) (*Payload, error) {
	if err := r.ParseMultipartForm(i.maxBytes); err != nil {
		return nil, apperror.InputError(MsgNoImage, err)
	}

	for _, field := range multipartFields {
		file, _, err := r.FormFile(field)
		if err != nil {
			continue
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, apperror.InputError(MsgNoImage, err)
		}
		return &Payload{Data: data, Encoding: EncodingMultipart}, nil
	}

	return nil, apperror.InputError(MsgNoImage, errors.New("no image or file field"))
}

func readDataURL(body io.Reader) (*Payload, error) {
	var req framePayload
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, apperror.InputError(MsgNoImage, err)
	}

	dataURL := req.Frame
	if dataURL == "" {
		dataURL = req.Image
	}

	data, err := DecodeDataURL(dataURL)
	if err != nil {
		return nil, apperror.InputError(MsgNoImage, err)
	}
	return &Payload{Data: data, Encoding: EncodingDataURL}, nil
}

// DecodeDataURL returns the bytes after the "base64," marker of a data-URL.
func DecodeDataURL(dataURL string) ([]byte, error) {
	_, encoded, found := strings.Cut(dataURL, "base64,")
	if !found {
		return nil, errors.New("data-URL has no base64 section")
	}

	encoded = strings.TrimSpace(encoded)
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// niektore przegladarki obcinaja padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("data-URL payload is empty")
	}
	return data, nil
}

// Decode turns JPEG/PNG/GIF/BMP/TIFF/WebP bytes into a BGR image, honoring EXIF orientation.
func Decode(data []byte) (*DecodedImage, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperror.InputError(MsgNoImage, err)
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, apperror.InputError(MsgNoImage, err)
	}

	decoded, err := NewDecodedImage(mat)
	if err != nil {
		return nil, apperror.InputError(MsgNoImage, err)
	}
	return decoded, nil
}
