package signature_test

import (
	"encoding/json"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/mgmeyers/pdfsign/signature"

	"github.com/stretchr/testify/require"
)

func TestEncodeWireFormat(t *testing.T) {
	data, err := signature.Encode([]signature.Record{
		{
			Type:       signature.Text,
			Data:       "Jane Doe",
			Position:   signature.Position{X: 100, Y: 702},
			PageNumber: 1,
			Font:       "Brush Script MT",
			FontSize:   36,
			Color:      "#000000",
		},
		{
			Type:       signature.Image,
			Data:       "data:image/png;base64,AAAA",
			Position:   signature.Position{X: 5, Y: 6},
			PageNumber: 2,
		},
	})
	require.NoError(t, err)

	require.JSONEq(t, `[
		{"type":"text","data":"Jane Doe","x":100,"y":702,"pageNumber":1,"font":"Brush Script MT","fontSize":36,"color":"#000000"},
		{"type":"image","data":"data:image/png;base64,AAAA","x":5,"y":6,"pageNumber":2}
	]`, string(data))
}

func TestEncodeEmpty(t *testing.T) {
	data, err := signature.Encode(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))
}

func TestDecode(t *testing.T) {
	records, err := signature.Decode([]byte(`[{"type":"text","data":"Test Signature","x":100,"y":100,"pageNumber":1,"font":"Helvetica","fontSize":24,"color":"#000000"}]`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, signature.Position{X: 100, Y: 100}, records[0].Position)
	require.Equal(t, "Helvetica", records[0].Font)
}

func TestAnnotationJSON(t *testing.T) {
	var a signature.Annotation

	err := json.Unmarshal([]byte(`{"type":"text","left":100,"top":120,"width":150,"height":40.68,"scaleX":1.5,"scaleY":1.5,"text":"Jane","fontFamily":"Brush Script MT, cursive","fontSize":36,"fill":"#000000"}`), &a)
	require.NoError(t, err)

	require.Equal(t, signature.Text, a.Kind)
	require.Equal(t, r2.Point{X: 100, Y: 120}, a.TopLeft)
	require.InDelta(t, 61.02, a.RenderedHeight(), 1e-9)
	require.InDelta(t, 225, a.RenderedWidth(), 1e-9)
	require.Equal(t, "#000000", a.Color)
	require.False(t, a.IsBackground())

	data, err := json.Marshal(a)
	require.NoError(t, err)

	var b signature.Annotation
	require.NoError(t, json.Unmarshal(data, &b))
	require.Equal(t, a, b)
}

func TestAnnotationJSONBackground(t *testing.T) {
	var a signature.Annotation

	require.NoError(t, json.Unmarshal([]byte(`{"type":"image","left":0,"top":0,"isBackground":true}`), &a))
	require.True(t, a.IsBackground())
	require.Equal(t, 0.0, a.RenderedHeight())
}

func TestAnnotationJSONFillTriple(t *testing.T) {
	var a signature.Annotation

	require.NoError(t, json.Unmarshal([]byte(`{"type":"text","left":0,"top":0,"text":"Jane","fontSize":36,"fill":[1,0,0.5]}`), &a))
	require.Equal(t, "#ff0080", a.Color)

	record, err := signature.ToRecord(a, 842, 1)
	require.NoError(t, err)
	require.Equal(t, "#ff0080", record.Color)

	for _, in := range []string{`[1.2,0,0]`, `[1,0]`, `{"r":1}`} {
		err := json.Unmarshal([]byte(`{"type":"text","fill":`+in+`}`), &a)
		require.ErrorIs(t, err, signature.ErrInvalidAnnotation, in)
	}
}
