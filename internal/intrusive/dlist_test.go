package intrusive

import "testing"

type listItem struct {
	DNode
	val int
}

func TestDListFrontBackOrder(t *testing.T) {
	var head DNode
	head.Init()

	items := []*listItem{{val: 1}, {val: 2}, {val: 3}}
	for _, it := range items {
		it.Init()
		AddBack(&head, &it.DNode)
	}

	var got []int
	for n := Front(&head); n != nil; n = n.Next() {
		for _, it := range items {
			if &it.DNode == n {
				got = append(got, it.val)
			}
		}
		if n == Back(&head) {
			break
		}
	}
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestDListDelAndMove(t *testing.T) {
	var head DNode
	head.Init()

	items := make([]*listItem, 4)
	for i := range items {
		items[i] = &listItem{val: i}
		items[i].Init()
		AddBack(&head, &items[i].DNode)
	}

	Del(&items[1].DNode)
	if !items[1].Empty() {
		t.Fatalf("expected detached node to be empty")
	}

	count := 0
	for n := Front(&head); n != nil; n = n.Next() {
		count++
		if n == Back(&head) {
			break
		}
	}
	if count != 3 {
		t.Fatalf("expected 3 nodes after Del, got %d", count)
	}

	MoveToFront(&head, &items[3].DNode)
	if Front(&head) != &items[3].DNode {
		t.Fatalf("expected items[3] at front after MoveToFront")
	}

	MoveToBack(&head, &items[3].DNode)
	if Back(&head) != &items[3].DNode {
		t.Fatalf("expected items[3] at back after MoveToBack")
	}
}

func TestDListEmpty(t *testing.T) {
	var head DNode
	head.Init()
	if Front(&head) != nil || Back(&head) != nil {
		t.Fatalf("expected empty list to report nil front/back")
	}
}
