package handler

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/hitoshi/fileteluss/internal/model"
)

const (
	// multipartMemory はマルチパート解析時にメモリに保持する上限。超過分は一時ファイルに退避される。
	multipartMemory = 32 << 20
	// multipartOverhead はペイロード以外のフォームフィールドとマルチパート境界の許容量。
	multipartOverhead = 1 << 20
)

// upload はマルチパートフォームから取り出したファイルパート。
type upload struct {
	file   multipart.File
	header *multipart.FileHeader
	form   *multipart.Form
}

// Close はファイルと一時ファイルを解放する。
func (u *upload) Close() {
	_ = u.file.Close()
	if u.form != nil {
		if err := u.form.RemoveAll(); err != nil {
			slog.Warn("failed to remove multipart temp files", slog.String("error", err.Error()))
		}
	}
}

// contentType はパートのContent-Typeを返す。
func (u *upload) contentType() string {
	return u.header.Header.Get("Content-Type")
}

// readUpload はリクエストボディをlimitで制限してマルチパート解析し、fieldのファイルを返す。
// 上限超過はFILE_TOO_LARGE、ファイル未指定はVALIDATION_FAILEDを返す。
func readUpload(w http.ResponseWriter, r *http.Request, field string, limit int64) (*upload, *model.APIError) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, model.NewFileTooLargeError(limit)
		}
		return nil, model.NewValidationError("Please select a file")
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		_ = r.MultipartForm.RemoveAll()
		return nil, model.NewValidationError("Please select a file")
	}
	return &upload{file: file, header: header, form: r.MultipartForm}, nil
}
