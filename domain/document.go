package domain

import "fmt"

// Document is a persisted attachment. A document whose storage fields are
// empty has not been uploaded yet and must not appear on a published record.
type Document struct {
	Name        string `json:"name" bson:"name"`
	MimeType    string `json:"mimeType" bson:"mimeType"`
	Size        int64  `json:"size" bson:"size"`
	URL         string `json:"url" bson:"url"`
	StoragePath string `json:"storagePath" bson:"storagePath"`
	StorageId   string `json:"storageId" bson:"storageId"`
	UploadedAt  int64  `json:"uploadedAt" bson:"uploadedAt"`
}

func (d Document) Persisted() bool {
	return d.StorageId != "" && d.URL != ""
}

type SlotKind uint8

const (
	SlotForm1 SlotKind = iota
	SlotForm19
	SlotAoa
	SlotCertificate
	SlotForm18
	SlotStep3Additional
	SlotStep4Additional
)

func (k SlotKind) String() string {
	switch k {
	case SlotForm1:
		return "form1"
	case SlotForm19:
		return "form19"
	case SlotAoa:
		return "aoa"
	case SlotCertificate:
		return "incorporationCertificate"
	case SlotForm18:
		return "form18"
	case SlotStep3Additional:
		return "step3AdditionalDocs"
	case SlotStep4Additional:
		return "step4AdditionalDocs"
	}
	return "unknown"
}

func (k SlotKind) Indexed() bool {
	switch k {
	case SlotForm18, SlotStep3Additional, SlotStep4Additional:
		return true
	}
	return false
}

// SlotRef identifies a document slot on a registration. Index is meaningful
// only for indexed kinds (form18 is aligned with the directors sequence, the
// additional-document kinds keep insertion order).
type SlotRef struct {
	Kind  SlotKind
	Index int
}

func (s SlotRef) String() string {
	if s.Kind.Indexed() {
		return fmt.Sprintf("%s[%d]", s.Kind, s.Index)
	}
	return s.Kind.String()
}

func ParseSlotKind(s string) (kind SlotKind, err error) {
	switch s {
	case "form1":
		return SlotForm1, nil
	case "form19":
		return SlotForm19, nil
	case "aoa":
		return SlotAoa, nil
	case "incorporationCertificate":
		return SlotCertificate, nil
	case "form18":
		return SlotForm18, nil
	case "step3AdditionalDocs":
		return SlotStep3Additional, nil
	case "step4AdditionalDocs":
		return SlotStep4Additional, nil
	}
	return 0, fmt.Errorf("unknown document slot %q", s)
}

// PendingDocument is a staged attachment whose payload has not been uploaded.
// Uploaded is set instead of Payload when the bytes already reached storage
// out of band but the document is not merged into the record yet.
type PendingDocument struct {
	Slot     SlotRef
	Name     string
	MimeType string
	Payload  []byte
	Uploaded *Document
}

// PendingSet is the staged overlay for one registration, in staging order.
type PendingSet []PendingDocument

// Single returns the staged document for a non-indexed slot kind.
func (ps PendingSet) Single(kind SlotKind) (doc PendingDocument, ok bool) {
	for _, d := range ps {
		if d.Slot.Kind == kind {
			return d, true
		}
	}
	return PendingDocument{}, false
}

// AtIndex returns the staged document for an indexed slot.
func (ps PendingSet) AtIndex(kind SlotKind, index int) (doc PendingDocument, ok bool) {
	for _, d := range ps {
		if d.Slot.Kind == kind && d.Slot.Index == index {
			return d, true
		}
	}
	return PendingDocument{}, false
}

// Sequence returns all staged documents of an indexed kind in staging order.
func (ps PendingSet) Sequence(kind SlotKind) (docs []PendingDocument) {
	for _, d := range ps {
		if d.Slot.Kind == kind {
			docs = append(docs, d)
		}
	}
	return
}

// MaxIndex returns the highest staged index of an indexed kind, or -1.
func (ps PendingSet) MaxIndex(kind SlotKind) (max int) {
	max = -1
	for _, d := range ps {
		if d.Slot.Kind == kind && d.Slot.Index > max {
			max = d.Slot.Index
		}
	}
	return
}
