package edit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-gpt/pkg/app"
	"github.com/deploymenttheory/go-gpt/pkg/gpt"
)

func TestParseAttributes(t *testing.T) {
	attrs, err := ParseAttributes([]string{"required,no-block-io", " Legacy-BIOS-Bootable ", ""})
	require.NoError(t, err)
	assert.Equal(t, gpt.AttrRequiredPartition|gpt.AttrNoBlockIOProtocol|gpt.AttrLegacyBIOSBootable, attrs)

	attrs, err = ParseAttributes(nil)
	require.NoError(t, err)
	assert.Zero(t, attrs)

	_, err = ParseAttributes([]string{"hidden"})
	assert.Error(t, err)
}

func TestRequestValidation(t *testing.T) {
	disk := app.DiskTarget{Path: "disk.img"}

	assert.NoError(t, (&InitRequest{Target: disk}).Validate())
	assert.NoError(t, (&InitRequest{Target: disk, Size: "1GiB", DiskGUID: "8c1f4a2e-5b3d-4f6a-9e7c-1d2b3a4c5e6f"}).Validate())
	assert.Error(t, (&InitRequest{}).Validate())
	assert.Error(t, (&InitRequest{Target: disk, DiskGUID: "not-a-guid"}).Validate())
	assert.Error(t, (&InitRequest{Target: disk, Size: "lots"}).Validate())

	assert.NoError(t, (&AddRequest{Target: disk, Type: "esp"}).Validate())
	assert.NoError(t, (&AddRequest{Target: disk, Type: "0fc63daf-8483-4772-8e79-3d69d8477de4"}).Validate())
	assert.Error(t, (&AddRequest{Target: disk, Type: "floppy"}).Validate())
	assert.Error(t, (&AddRequest{Target: disk, Type: "esp", Attributes: []string{"bogus"}}).Validate())

	assert.NoError(t, (&DeleteRequest{Target: disk, Index: 0}).Validate())
	assert.Error(t, (&DeleteRequest{Target: disk, Index: -1}).Validate())
}
