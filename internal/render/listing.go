package render

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// PartitionRow is one row of `mtdls` output.
type PartitionRow struct {
	Index       int    `json:"index" yaml:"index"`
	Offset      int64  `json:"offset" yaml:"offset"`
	Length      int64  `json:"length" yaml:"length"`
	Description string `json:"description" yaml:"description"`
	PEBSize     int64  `json:"peb_size,omitempty" yaml:"peb_size,omitempty"`
}

func PrintPartitions(w io.Writer, v any) {
	rows, _ := v.([]PartitionRow)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IDX\tOFFSET\tLENGTH\tDESCRIPTION\tPEB SIZE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%d\n", r.Index, r.Offset, r.Length, r.Description, r.PEBSize)
	}
	tw.Flush()
}

// VolumeRow is one row of `ubils` output.
type VolumeRow struct {
	ID       uint32 `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	SizeLEBs uint32 `json:"size_lebs" yaml:"size_lebs"`
	Type     string `json:"type" yaml:"type"`
	Orphan   bool   `json:"orphan" yaml:"orphan"`
}

func PrintVolumes(w io.Writer, v any) {
	rows, _ := v.([]VolumeRow)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE (LEBs)\tTYPE\tORPHAN")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%v\n", r.ID, r.Name, r.SizeLEBs, r.Type, r.Orphan)
	}
	tw.Flush()
}

// LEBRow is one row of `lebls` output.
type LEBRow struct {
	LNum   uint32 `json:"lnum" yaml:"lnum"`
	PEB    int    `json:"peb" yaml:"peb"`
	Mapped bool   `json:"mapped" yaml:"mapped"`
}

func PrintLEBs(w io.Writer, v any) {
	rows, _ := v.([]LEBRow)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LNUM\tPEB\tMAPPED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%v\n", r.LNum, r.PEB, r.Mapped)
	}
	tw.Flush()
}

// DirEntryRow is one row of `fls`/`ffind` output: (type, inode#, parent#,
// name), per spec.md §6.
type DirEntryRow struct {
	Inode   uint32 `json:"inode" yaml:"inode"`
	Parent  uint32 `json:"parent" yaml:"parent"`
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Deleted bool   `json:"deleted" yaml:"deleted"`
}

func PrintDirEntries(w io.Writer, v any) {
	rows, _ := v.([]DirEntryRow)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tINODE\tPARENT\tNAME\tDELETED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%v\n", r.Type, r.Inode, r.Parent, r.Name, r.Deleted)
	}
	tw.Flush()
}

// FSStat is the output of `fsstat`: a summary of the UBIFS superblock and
// master node.
type FSStat struct {
	MinIOSize   uint32 `json:"min_io_size" yaml:"min_io_size"`
	LEBSize     uint32 `json:"leb_size" yaml:"leb_size"`
	LEBCount    uint32 `json:"leb_count" yaml:"leb_count"`
	Fanout      uint32 `json:"fanout" yaml:"fanout"`
	Compression string `json:"default_compression" yaml:"default_compression"`
	HighestInum uint64 `json:"highest_inum" yaml:"highest_inum"`
	CommitNo    uint64 `json:"commit_no" yaml:"commit_no"`
	LogLNum     uint32 `json:"log_lnum" yaml:"log_lnum"`
	RootLNum    uint32 `json:"root_lnum" yaml:"root_lnum"`
	RootOffset  uint32 `json:"root_offset" yaml:"root_offset"`
}

func PrintFSStat(w io.Writer, v any) {
	s, _ := v.(FSStat)
	fmt.Fprintf(w, "Min I/O size:       %d\n", s.MinIOSize)
	fmt.Fprintf(w, "LEB size:           %d\n", s.LEBSize)
	fmt.Fprintf(w, "LEB count:          %d\n", s.LEBCount)
	fmt.Fprintf(w, "Fanout:             %d\n", s.Fanout)
	fmt.Fprintf(w, "Default compress:   %s\n", s.Compression)
	fmt.Fprintf(w, "Highest inode num:  %d\n", s.HighestInum)
	fmt.Fprintf(w, "Commit number:      %d\n", s.CommitNo)
	fmt.Fprintf(w, "Log LEB:            %d\n", s.LogLNum)
	fmt.Fprintf(w, "Root index LEB:     %d\n", s.RootLNum)
	fmt.Fprintf(w, "Root index offset:  %d\n", s.RootOffset)
}

// InodeStat is the output of `istat`.
type InodeStat struct {
	Inode       uint32 `json:"inode" yaml:"inode"`
	Size        uint64 `json:"size" yaml:"size"`
	Nlink       uint32 `json:"nlink" yaml:"nlink"`
	Mode        uint32 `json:"mode" yaml:"mode"`
	UID         uint32 `json:"uid" yaml:"uid"`
	GID         uint32 `json:"gid" yaml:"gid"`
	Compression string `json:"compression" yaml:"compression"`
}

func PrintInodeStat(w io.Writer, v any) {
	s, _ := v.(InodeStat)
	fmt.Fprintf(w, "Inode:       %d\n", s.Inode)
	fmt.Fprintf(w, "Size:        %d\n", s.Size)
	fmt.Fprintf(w, "Link count:  %d\n", s.Nlink)
	fmt.Fprintf(w, "Mode:        %#o\n", s.Mode)
	fmt.Fprintf(w, "UID/GID:     %d/%d\n", s.UID, s.GID)
	fmt.Fprintf(w, "Compression: %s\n", s.Compression)
}

// PrintInodeList renders `ils`' one-row-per-inode table.
func PrintInodeList(w io.Writer, v any) {
	rows, _ := v.([]InodeStat)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INODE\tSIZE\tNLINK\tMODE\tUID\tGID\tCOMPRESSION")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%#o\t%d\t%d\t%s\n", r.Inode, r.Size, r.Nlink, r.Mode, r.UID, r.GID, r.Compression)
	}
	tw.Flush()
}

// JournalEntryRow is one row of `jls` output.
type JournalEntryRow struct {
	SeqNum uint64 `json:"seqnum" yaml:"seqnum"`
	LEB    uint32 `json:"leb" yaml:"leb"`
	Offset int64  `json:"offset" yaml:"offset"`
	Type   string `json:"type" yaml:"type"`
	Key    string `json:"key" yaml:"key"`
}

func PrintJournal(w io.Writer, v any) {
	rows, _ := v.([]JournalEntryRow)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQNUM\tLEB\tOFFSET\tTYPE\tKEY")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n", r.SeqNum, r.LEB, r.Offset, r.Type, r.Key)
	}
	tw.Flush()
}

// InfoReport is the output of `ubift_info`.
type InfoReport struct {
	Partitions        int `json:"partitions" yaml:"partitions"`
	Volumes           int `json:"volumes" yaml:"volumes"`
	OrphanVolumes     int `json:"orphan_volumes" yaml:"orphan_volumes"`
	StalePEBs         int `json:"stale_pebs" yaml:"stale_pebs"`
	RecoverableInodes int `json:"recoverable_inodes" yaml:"recoverable_inodes"`
	IntegrityIssues   int `json:"integrity_issues" yaml:"integrity_issues"`
}

func PrintInfo(w io.Writer, v any) {
	r, _ := v.(InfoReport)
	fmt.Fprintf(w, "Partitions:         %d\n", r.Partitions)
	fmt.Fprintf(w, "Volumes:            %d\n", r.Volumes)
	fmt.Fprintf(w, "Orphan volumes:     %d\n", r.OrphanVolumes)
	fmt.Fprintf(w, "Stale PEBs:         %d\n", r.StalePEBs)
	fmt.Fprintf(w, "Recoverable inodes: %d\n", r.RecoverableInodes)
	fmt.Fprintf(w, "Integrity issues:   %d\n", r.IntegrityIssues)
}
