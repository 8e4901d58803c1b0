package echoapi

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core"
)

const (
	orderingParam = "ordering"
	fileField     = "file"
	xlsxMIME      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	if param := ctx.QueryParam(orderingParam); param != "" {
		ord.Orderings = core.ParseOrdering(param)
	}
}

// uploadedFile returns the multipart "file" upload, or the raw request body
// named by ?filename= when the request is not multipart.
func uploadedFile(ctx echo.Context) (string, io.ReadCloser, error) {
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := ctx.FormFile(fileField)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				return "", nil, errNoFile
			}
			return "", nil, errors.Wrap(err, "reading form file")
		}
		f, err := fh.Open()
		if err != nil {
			return "", nil, errors.Wrap(err, "opening form file")
		}
		return fh.Filename, f, nil
	}

	if ctx.Request().ContentLength == 0 {
		return "", nil, errNoFile
	}
	name := ctx.QueryParam("filename")
	if name == "" {
		name = "upload.csv"
	}
	return name, ctx.Request().Body, nil
}

// attachment streams what write produces as a downloadable file.
func attachment(ctx echo.Context, name, contentType string, write func(w io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return ctx.Blob(http.StatusOK, contentType, buf.Bytes())
}
