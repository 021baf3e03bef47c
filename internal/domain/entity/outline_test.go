package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree() *OutlineNode {
	return &OutlineNode{
		Name: "第一卷",
		Type: OutlineNodeVolume,
		Children: []*OutlineNode{
			{
				Name: "开端",
				Type: OutlineNodeArc,
				Children: []*OutlineNode{
					{Name: "第一章", Type: OutlineNodeChapter},
					{Name: "第二章", Type: OutlineNodeChapter, ID: "fixed-id"},
				},
			},
			{Name: "高潮", Type: OutlineNodeArc},
		},
	}
}

func TestEnsureIDsFillsMissing(t *testing.T) {
	root := buildTree()
	root.EnsureIDs()

	var walk func(n *OutlineNode)
	walk = func(n *OutlineNode) {
		assert.NotEmpty(t, n.ID)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)

	// 已有 ID 的节点保持不变
	assert.Equal(t, "fixed-id", root.Children[0].Children[1].ID)
}

func TestEnsureIDsIdempotent(t *testing.T) {
	root := buildTree()
	root.EnsureIDs()

	collect := func(n *OutlineNode) []string {
		var ids []string
		var walk func(n *OutlineNode)
		walk = func(n *OutlineNode) {
			ids = append(ids, n.ID)
			for _, c := range n.Children {
				walk(c)
			}
		}
		walk(n)
		return ids
	}

	first := collect(root)
	root.EnsureIDs()
	second := collect(root)
	assert.Equal(t, first, second)
}

func TestFindByID(t *testing.T) {
	root := buildTree()
	root.EnsureIDs()

	found := root.FindByID("fixed-id")
	require.NotNil(t, found)
	assert.Equal(t, "第二章", found.Name)

	assert.Nil(t, root.FindByID("no-such-id"))
}

func TestCountNodes(t *testing.T) {
	root := buildTree()
	assert.Equal(t, 5, root.CountNodes())

	var nilNode *OutlineNode
	assert.Equal(t, 0, nilNode.CountNodes())
}
