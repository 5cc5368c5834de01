package app

import (
	"errors"
	"strings"
)

type MessageKey string

const (
	MsgUploadFieldsRequired MessageKey = "upload_fields_required"
	MsgServiceOrderInvalid  MessageKey = "service_order_invalid"
	MsgUnsupportedFile      MessageKey = "unsupported_file"
	MsgInvalidPDF           MessageKey = "invalid_pdf"
	MsgExtensionMismatch    MessageKey = "extension_mismatch"
	MsgFileTooLarge         MessageKey = "file_too_large"
	MsgCaptureFailed        MessageKey = "capture_failed"
	MsgSelectionExpired     MessageKey = "selection_expired"
	MsgUploadFailed         MessageKey = "upload_failed"
	MsgInsertFailed         MessageKey = "insert_failed"
	MsgUploadSucceeded      MessageKey = "upload_succeeded"
	MsgUploadBusy           MessageKey = "upload_busy"
	MsgSearchFieldRequired  MessageKey = "search_field_required"
	MsgSearchFailed         MessageKey = "search_failed"
	MsgNoAttachments        MessageKey = "no_attachments"
	MsgUnexpected           MessageKey = "unexpected"
	LabelTitle              MessageKey = "title"
	LabelServiceOrder       MessageKey = "service_order"
	LabelServiceOrderHint   MessageKey = "service_order_hint"
	LabelWorkcenter         MessageKey = "workcenter"
	LabelWorkcenterHint     MessageKey = "workcenter_hint"
	LabelFile               MessageKey = "file"
	LabelOpenCamera         MessageKey = "open_camera"
	LabelCapture            MessageKey = "capture"
	LabelCameraUnavailable  MessageKey = "camera_unavailable"
	LabelUpload             MessageKey = "upload"
	LabelUploading          MessageKey = "uploading"
	LabelSearch             MessageKey = "search"
	LabelResults            MessageKey = "results"
	LabelOpenFile           MessageKey = "open_file"
	LabelPreview            MessageKey = "preview"
	LabelSelectedFile       MessageKey = "selected_file"
)

const DefaultLocale = "id"

var catalog = map[string]map[MessageKey]string{
	"id": {
		MsgUploadFieldsRequired: "Harap isi Service Order ID dan Workcenter sebelum mengunggah file.",
		MsgServiceOrderInvalid:  "Service Order ID tidak boleh mengandung '/', '\\' atau '..'.",
		MsgUnsupportedFile:      "Hanya file gambar atau PDF yang dapat diunggah.",
		MsgInvalidPDF:           "File PDF tidak dapat dibaca.",
		MsgExtensionMismatch:    "Ekstensi file tidak sesuai dengan isi file.",
		MsgFileTooLarge:         "Ukuran file melebihi batas.",
		MsgCaptureFailed:        "Gagal mengambil foto dari kamera.",
		MsgSelectionExpired:     "File terpilih sudah kedaluwarsa, silakan pilih file lagi.",
		MsgUploadFailed:         "Gagal mengunggah file: ",
		MsgInsertFailed:         "File gagal dicatat, unggahan dibatalkan: ",
		MsgUploadSucceeded:      "File berhasil diunggah!",
		MsgUploadBusy:           "Unggahan sedang berlangsung, harap tunggu.",
		MsgSearchFieldRequired:  "Masukkan Service Order ID untuk mencari file.",
		MsgSearchFailed:         "Gagal mencari file: ",
		MsgNoAttachments:        "Tidak ada file ditemukan untuk Service Order ID ini.",
		MsgUnexpected:           "Terjadi kesalahan, silakan coba lagi.",
		LabelTitle:              "Unggah Lampiran Service Order",
		LabelServiceOrder:       "Service Order ID",
		LabelServiceOrderHint:   "Masukkan Service Order ID",
		LabelWorkcenter:         "Workcenter",
		LabelWorkcenterHint:     "Masukkan Workcenter",
		LabelFile:               "Pilih File",
		LabelOpenCamera:         "Buka Kamera",
		LabelCapture:            "Ambil Foto",
		LabelCameraUnavailable:  "Gagal mengakses kamera",
		LabelUpload:             "Upload File",
		LabelUploading:          "Uploading...",
		LabelSearch:             "Cari Service Order",
		LabelResults:            "Hasil Pencarian",
		LabelOpenFile:           "Buka file",
		LabelPreview:            "Pratinjau",
		LabelSelectedFile:       "File terpilih",
	},
	"en": {
		MsgUploadFieldsRequired: "Fill in Service Order ID and Workcenter before uploading a file.",
		MsgServiceOrderInvalid:  "Service Order ID must not contain '/', '\\' or '..'.",
		MsgUnsupportedFile:      "Only image or PDF files can be uploaded.",
		MsgInvalidPDF:           "The PDF file cannot be read.",
		MsgExtensionMismatch:    "The file extension does not match its content.",
		MsgFileTooLarge:         "The file is larger than allowed.",
		MsgCaptureFailed:        "Could not take a photo from the camera.",
		MsgSelectionExpired:     "The selected file expired, please choose it again.",
		MsgUploadFailed:         "Failed to upload file: ",
		MsgInsertFailed:         "File could not be recorded, upload cancelled: ",
		MsgUploadSucceeded:      "File uploaded successfully!",
		MsgUploadBusy:           "An upload is in progress, please wait.",
		MsgSearchFieldRequired:  "Enter a Service Order ID to search for files.",
		MsgSearchFailed:         "Failed to search files: ",
		MsgNoAttachments:        "No files found for this Service Order ID.",
		MsgUnexpected:           "Something went wrong, please try again.",
		LabelTitle:              "Service Order Attachments",
		LabelServiceOrder:       "Service Order ID",
		LabelServiceOrderHint:   "Enter Service Order ID",
		LabelWorkcenter:         "Workcenter",
		LabelWorkcenterHint:     "Enter Workcenter",
		LabelFile:               "Choose File",
		LabelOpenCamera:         "Open Camera",
		LabelCapture:            "Take Photo",
		LabelCameraUnavailable:  "Could not access the camera",
		LabelUpload:             "Upload File",
		LabelUploading:          "Uploading...",
		LabelSearch:             "Search Service Order",
		LabelResults:            "Search Results",
		LabelOpenFile:           "Open file",
		LabelPreview:            "Preview",
		LabelSelectedFile:       "Selected file",
	},
}

// Messages resolves catalog keys for one locale.
type Messages struct {
	locale  string
	entries map[MessageKey]string
}

// NewMessages falls back to DefaultLocale for unknown locales.
func NewMessages(locale string) *Messages {
	locale = strings.ToLower(strings.TrimSpace(locale))
	entries, ok := catalog[locale]
	if !ok {
		locale = DefaultLocale
		entries = catalog[DefaultLocale]
	}
	return &Messages{locale: locale, entries: entries}
}

func (m *Messages) Locale() string {
	return m.locale
}

func (m *Messages) Get(key MessageKey) string {
	if text, ok := m.entries[key]; ok {
		return text
	}
	return string(key)
}

// Labels returns the whole table, keyed by string for templates.
func (m *Messages) Labels() map[string]string {
	out := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		out[string(k)] = v
	}
	return out
}

// Describe turns a workflow outcome into the text shown to the user. Store
// failures keep the store's message after the localized prefix.
func (m *Messages) Describe(err error) string {
	if err == nil {
		return m.Get(MsgUploadSucceeded)
	}
	switch {
	case errors.Is(err, ErrNoAttachments):
		return m.Get(MsgNoAttachments)
	case errors.Is(err, ErrUploadInProgress):
		return m.Get(MsgUploadBusy)
	}

	var wfErr *WorkflowError
	if !errors.As(err, &wfErr) {
		return m.Get(MsgUnexpected)
	}
	if wfErr.Kind == FailureValidation {
		return m.Get(wfErr.Key)
	}
	return m.Get(wfErr.Key) + wfErr.Message
}
