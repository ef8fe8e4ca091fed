package pipeline

import (
	"bytes"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/barcode"
	"github.com/MeKo-Tech/cardcrop/internal/recognizer"
	"github.com/MeKo-Tech/cardcrop/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResult() *Result {
	return &Result{
		ID:       "photos/card.jpg",
		Width:    800,
		Height:   600,
		Duration: 42 * time.Millisecond,
		Crops: []Crop{{
			Index:   1,
			Image:   image.NewNRGBA(image.Rect(0, 0, 620, 420)),
			Corners: utils.Quad{{X: 100, Y: 100}, {X: 700, Y: 100}, {X: 700, Y: 500}, {X: 100, Y: 500}},
			Method:  "gradient",
			Width:   600,
			Height:  400,
			Border:  10,
			Text:    &recognizer.Text{Content: "JACK"},
		}},
	}
}

func TestRecords_Success(t *testing.T) {
	recs := Records(sampleResult(), []string{"out/card_cropped.png"}, nil)
	require.Len(t, recs, 1)
	r := recs[0]
	assert.True(t, r.Success)
	assert.Equal(t, 1.0, r.Confidence)
	assert.Zero(t, r.Card, "single crops carry no card index")
	require.NotNil(t, r.OutputPath)
	assert.Equal(t, "out/card_cropped.png", *r.OutputPath)
	assert.Equal(t, [2]float64{700, 100}, r.Corners[1])
	assert.Nil(t, r.Error)
	assert.Nil(t, r.Stage)
	assert.EqualValues(t, 42, r.DurationMs)
	assert.Equal(t, "JACK", r.Text)
}

func TestRecords_Failure(t *testing.T) {
	res := &Result{ID: "x.png"}
	recs := Records(res, nil, NewError(ErrNoQuadrilateral, StageFallback, nil))
	require.Len(t, recs, 1)
	r := recs[0]
	assert.False(t, r.Success)
	assert.Nil(t, r.Corners)
	assert.Nil(t, r.OutputPath)
	require.NotNil(t, r.Stage)
	assert.Equal(t, "fallback", *r.Stage)
	assert.Equal(t, "no_quadrilateral_candidate", r.Kind)

	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, recs, FormatJSON))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Nil(t, decoded[0]["output_path"])
	assert.Nil(t, decoded[0]["corners"])
	assert.Equal(t, "fallback", decoded[0]["stage"])
	assert.NotContains(t, decoded[0], "text")
}

func TestWriteRecords_Formats(t *testing.T) {
	recs := Records(sampleResult(), []string{"out/a.png"}, nil)
	recs = append(recs, Records(&Result{ID: "b.png"}, nil, NewError(ErrTimeout, StageRectify, nil))...)

	var csvBuf bytes.Buffer
	require.NoError(t, WriteRecords(&csvBuf, recs, FormatCSV))
	lines := strings.Split(strings.TrimSpace(csvBuf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "source_path,card,success,output_path,tl_x"))
	assert.Contains(t, lines[1], "photos/card.jpg,0,true,out/a.png,100.0,100.0,700.0,100.0")
	assert.Contains(t, lines[2], "b.png,0,false,,,,")
	assert.Contains(t, lines[2], "rectify")

	var yamlBuf bytes.Buffer
	require.NoError(t, WriteRecords(&yamlBuf, recs, FormatYAML))
	var decoded []Record
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "photos/card.jpg", decoded[0].SourcePath)
	assert.Equal(t, "timeout", decoded[1].Kind)

	var textBuf bytes.Buffer
	require.NoError(t, WriteRecords(&textBuf, recs, FormatText))
	assert.Contains(t, textBuf.String(), "photos/card.jpg: OK 600x400 via gradient -> out/a.png \"JACK\"")
	assert.Contains(t, textBuf.String(), "b.png: FAILED at rectify: rectify: timeout")

	assert.Error(t, WriteRecords(&textBuf, recs, Format("xml")))
}

func TestRecords_RotationAndBarcodes(t *testing.T) {
	res := sampleResult()
	res.Crops[0].Rotation = 90
	res.Crops[0].Barcodes = []barcode.Result{
		{Format: barcode.FormatQR, Text: "CARD-1"},
		{Format: barcode.FormatEAN13, Text: "4006381333931"},
	}
	recs := Records(res, nil, nil)
	require.Len(t, recs, 1)
	assert.Equal(t, 90, recs[0].Rotation)
	require.Len(t, recs[0].Barcodes, 2)

	var jsonBuf bytes.Buffer
	require.NoError(t, WriteRecords(&jsonBuf, recs, FormatJSON))
	assert.Contains(t, jsonBuf.String(), `"format": "qr"`)
	assert.Contains(t, jsonBuf.String(), `"rotation": 90`)

	var csvBuf bytes.Buffer
	require.NoError(t, WriteRecords(&csvBuf, recs, FormatCSV))
	assert.Contains(t, csvBuf.String(), ",rotation,barcodes\n")
	assert.Contains(t, csvBuf.String(), ",JACK,90,qr:CARD-1;ean13:4006381333931\n")

	assert.Contains(t, recs[0].String(), "rotated 90 [qr:CARD-1;ean13:4006381333931]")
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "csv": FormatCSV, "yml": FormatYAML, "txt": FormatText} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "card_cropped.png"), OutputPath("out", "in/card.jpg", 1, false, ".png"))
	assert.Equal(t, filepath.Join("out", "card_card2.jpg"), OutputPath("out", "in/card.jpg", 2, true, ".jpg"))
	assert.Equal(t, filepath.Join("out", "scan_p3_cropped.png"), OutputPath("out", "docs/scan.pdf#3", 1, false, ".png"))
}

func TestSaveCrops(t *testing.T) {
	dir := t.TempDir()
	paths, err := SaveCrops(sampleResult(), OutputOptions{Dir: dir, Format: "jpeg", Quality: 90}, false)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(dir, "card_cropped.jpg"), paths[0])
	_, err = os.Stat(paths[0])
	assert.NoError(t, err)

	_, err = SaveCrops(sampleResult(), OutputOptions{Dir: dir, Format: "gif"}, false)
	assert.Error(t, err)
}
