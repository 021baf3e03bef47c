package entity

import (
	"github.com/google/uuid"
)

// OutlineNodeType 大纲节点类型
type OutlineNodeType string

const (
	OutlineNodeVolume  OutlineNodeType = "volume"
	OutlineNodeArc     OutlineNodeType = "arc"
	OutlineNodeChapter OutlineNodeType = "chapter"
	OutlineNodeScene   OutlineNodeType = "scene"
)

// OutlineNode 大纲树节点。LLM 输出的节点通常不带 ID，
// 入库前必须经过 EnsureIDs 补齐。
type OutlineNode struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Type        OutlineNodeType `json:"type"`
	Description string          `json:"description,omitempty"`
	Children    []*OutlineNode  `json:"children,omitempty"`
}

// EnsureIDs 递归补齐缺失的节点 ID。已有 ID 的节点保持不变，
// 对同一棵树重复调用不会改变任何已分配的 ID。
func (n *OutlineNode) EnsureIDs() {
	if n == nil {
		return
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	for _, child := range n.Children {
		child.EnsureIDs()
	}
}

// EnsureOutlineIDs 对节点森林补齐 ID
func EnsureOutlineIDs(nodes []*OutlineNode) {
	for _, n := range nodes {
		n.EnsureIDs()
	}
}

// CountNodes 统计树中节点总数
func (n *OutlineNode) CountNodes() int {
	if n == nil {
		return 0
	}
	count := 1
	for _, child := range n.Children {
		count += child.CountNodes()
	}
	return count
}

// FindByID 按 ID 查找节点，未找到时返回 nil
func (n *OutlineNode) FindByID(id string) *OutlineNode {
	if n == nil {
		return nil
	}
	if n.ID == id {
		return n
	}
	for _, child := range n.Children {
		if found := child.FindByID(id); found != nil {
			return found
		}
	}
	return nil
}
